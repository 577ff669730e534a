package region

import (
	"errors"
	"fmt"
)

// ID identifies an independently textured area of the garment.
type ID string

const (
	Front       ID = "front"
	Back        ID = "back"
	SleeveLeft  ID = "sleeveLeft"
	SleeveRight ID = "sleeveRight"
	Collar      ID = "collar"
	Hem         ID = "hem"
)

// All lists every region in the order surfaces are created and flushed.
var All = []ID{Front, Back, SleeveLeft, SleeveRight, Collar, Hem}

var ErrUnknownRegion = errors.New("unknown region")

// ParseID validates a region identifier coming from outside the core.
func ParseID(s string) (ID, error) {
	for _, id := range All {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegion, s)
}

// Valid reports whether id is one of the closed set.
func (id ID) Valid() bool {
	_, err := ParseID(string(id))
	return err == nil
}

func (id ID) String() string { return string(id) }

// Slot is a stripe layer slot. Each region carries up to four stripe layers.
type Slot string

const (
	Tab1 Slot = "tab1"
	Tab2 Slot = "tab2"
	Tab3 Slot = "tab3"
	Tab4 Slot = "tab4"
)

// Slots lists stripe slots bottom to top.
var Slots = []Slot{Tab1, Tab2, Tab3, Tab4}

var ErrInvalidSlot = errors.New("invalid stripe slot")

// ParseSlot validates a stripe slot identifier.
func ParseSlot(s string) (Slot, error) {
	for _, slot := range Slots {
		if string(slot) == s {
			return slot, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSlot, s)
}

// Index returns the slot's position among Slots, or -1.
func (s Slot) Index() int {
	for i, slot := range Slots {
		if slot == s {
			return i
		}
	}
	return -1
}

// Box is a bounding box normalized to [0,1] of the surface dimensions.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Pixels converts the box to surface pixels for a surface of side size.
func (b Box) Pixels(size float64) (x, y, w, h float64) {
	return b.X * size, b.Y * size, b.Width * size, b.Height * size
}

// Center returns the box center in surface pixels.
func (b Box) Center(size float64) (float64, float64) {
	x, y, w, h := b.Pixels(size)
	return x + w/2, y + h/2
}
