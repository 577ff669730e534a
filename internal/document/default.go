package document

import (
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/stripe"
)

// NewDefault creates the configuration of an untouched garment: every part
// white, no artwork and every stripe slot empty.
func NewDefault() *Configuration {
	c := &Configuration{
		ActiveTab:   TabDesigns,
		Parts:       make(map[region.ID]Part, len(region.All)),
		Logos:       make(map[region.ID][]Logo, len(region.All)),
		Orientation: stripe.Horizontal,
		Stripes:     make(map[region.ID]map[region.Slot]stripe.Config, len(region.All)),
	}
	for _, id := range region.All {
		c.Parts[id] = Part{Color: "#ffffff"}
		c.Logos[id] = []Logo{}
		slots := make(map[region.Slot]stripe.Config, len(region.Slots))
		for _, s := range region.Slots {
			slots[s] = stripe.DefaultConfig()
		}
		c.Stripes[id] = slots
	}
	return c
}
