package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/stripe"
)

var ErrInvalid = errors.New("invalid configuration")

type ActiveTab string

const (
	TabDesigns ActiveTab = "designs"
	TabColors  ActiveTab = "colors"
)

// Configuration is the persisted state of one customized garment.
type Configuration struct {
	ActiveTab ActiveTab            `json:"activeTab"`
	Design    Design               `json:"design"`
	Parts     map[region.ID]Part   `json:"parts"`
	Logos     map[region.ID][]Logo `json:"logos"`

	Orientation stripe.Orientation                          `json:"orientation,omitempty"`
	Stripes     map[region.ID]map[region.Slot]stripe.Config `json:"stripes,omitempty"`
	Designs     map[region.ID]string                        `json:"designs,omitempty"`
}

// Design is the garment-wide base artwork.
type Design struct {
	SVGPath string `json:"svgPath"`
}

type Part struct {
	Color string `json:"color"`
}

// Logo is one placed logo. Left and Top locate the origin point named by
// OriginX and OriginY, in surface pixels.
type Logo struct {
	URL     string  `json:"url"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	ScaleX  float64 `json:"scaleX"`
	ScaleY  float64 `json:"scaleY"`
	Angle   float64 `json:"angle"`
	OriginX string  `json:"originX"`
	OriginY string  `json:"originY"`
}

var (
	originsX = map[string]bool{"": true, "left": true, "center": true, "right": true}
	originsY = map[string]bool{"": true, "top": true, "center": true, "bottom": true}
)

// Parse decodes and validates a configuration.
func Parse(r io.Reader) (*Configuration, error) {
	var c Configuration
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("document: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks region and slot keys and every value the engine would
// reject when loading.
func (c *Configuration) Validate() error {
	switch c.ActiveTab {
	case "", TabDesigns, TabColors:
	default:
		return fmt.Errorf("document: %w: activeTab %q", ErrInvalid, c.ActiveTab)
	}
	if c.Orientation != "" {
		if _, err := stripe.ParseOrientation(string(c.Orientation)); err != nil {
			return fmt.Errorf("document: %w: %w", ErrInvalid, err)
		}
	}

	for id := range c.Parts {
		if !id.Valid() {
			return fmt.Errorf("document: parts: %w: %q", region.ErrUnknownRegion, id)
		}
	}
	for id := range c.Designs {
		if !id.Valid() {
			return fmt.Errorf("document: designs: %w: %q", region.ErrUnknownRegion, id)
		}
	}
	for id, logos := range c.Logos {
		if !id.Valid() {
			return fmt.Errorf("document: logos: %w: %q", region.ErrUnknownRegion, id)
		}
		for i, l := range logos {
			if l.URL == "" {
				return fmt.Errorf("document: %w: logos.%s[%d] has no url", ErrInvalid, id, i)
			}
			if l.ScaleX <= 0 || l.ScaleY <= 0 {
				return fmt.Errorf("document: %w: logos.%s[%d] scale %gx%g", ErrInvalid, id, i, l.ScaleX, l.ScaleY)
			}
			if !originsX[l.OriginX] || !originsY[l.OriginY] {
				return fmt.Errorf("document: %w: logos.%s[%d] origin %s/%s", ErrInvalid, id, i, l.OriginX, l.OriginY)
			}
		}
	}
	for id, slots := range c.Stripes {
		if !id.Valid() {
			return fmt.Errorf("document: stripes: %w: %q", region.ErrUnknownRegion, id)
		}
		for slot, cfg := range slots {
			if slot.Index() < 0 {
				return fmt.Errorf("document: stripes.%s: %w: %q", id, region.ErrInvalidSlot, slot)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("document: stripes.%s.%s: %w", id, slot, err)
			}
		}
	}
	return nil
}

// DesignRef returns the design reference for a region: its own entry in
// Designs, else the garment-wide design.
func (c *Configuration) DesignRef(id region.ID) string {
	if ref, ok := c.Designs[id]; ok {
		return ref
	}
	return c.Design.SVGPath
}

// IsBackgroundPlacement reports whether l is the design itself placed as an
// image at the exact surface center. Such placements are not logos and are
// left out of exports.
func IsBackgroundPlacement(l Logo, designRef string, size int) bool {
	center := float64(size) / 2
	return designRef != "" && l.URL == designRef && l.Left == center && l.Top == center
}
