package stripe

import (
	"errors"
	"fmt"

	"github.com/kitforge/kitforge/backend-go/internal/region"
)

// Config is the per-region, per-slot stripe setting edited by the user.
type Config struct {
	Count     int     `json:"count"`
	Color     string  `json:"color"`
	Position  float64 `json:"position"`
	Gap       float64 `json:"gap"`
	Thickness float64 `json:"thickness"`
}

// DefaultConfig is the state of every slot at startup: present but empty.
func DefaultConfig() Config {
	return Config{
		Count:     0,
		Color:     "#ffffff",
		Position:  0,
		Gap:       10,
		Thickness: 5,
	}
}

var ErrInvalidConfig = errors.New("invalid stripe config")

// Validate rejects values the generator cannot lay out.
func (c Config) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("%w: count %d", ErrInvalidConfig, c.Count)
	}
	if c.Thickness < 0 || c.Gap < 0 {
		return fmt.Errorf("%w: thickness %g gap %g", ErrInvalidConfig, c.Thickness, c.Gap)
	}
	return nil
}

// Rects generates the slot's primitives.
func (c Config) Rects(o Orientation, box region.Box, size float64) []Rect {
	return Generate(o, c.Count, c.Thickness, c.Gap, c.Color, c.Position, box, size)
}

// Table holds the stripe configuration of every region and slot.
type Table map[region.ID]map[region.Slot]Config

// NewTable creates a table with every slot at its default.
func NewTable(regions []region.ID) Table {
	t := make(Table, len(regions))
	for _, id := range regions {
		slots := make(map[region.Slot]Config, len(region.Slots))
		for _, s := range region.Slots {
			slots[s] = DefaultConfig()
		}
		t[id] = slots
	}
	return t
}

// Get returns the slot config, or the default for a slot never set.
func (t Table) Get(id region.ID, slot region.Slot) Config {
	if slots, ok := t[id]; ok {
		if c, ok := slots[slot]; ok {
			return c
		}
	}
	return DefaultConfig()
}

// Set stores a slot config.
func (t Table) Set(id region.ID, slot region.Slot, c Config) {
	slots, ok := t[id]
	if !ok {
		slots = make(map[region.Slot]Config, len(region.Slots))
		t[id] = slots
	}
	slots[slot] = c
}
