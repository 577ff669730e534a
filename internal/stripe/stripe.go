package stripe

import (
	"errors"
	"fmt"
	"math"

	"github.com/kitforge/kitforge/backend-go/internal/region"
)

// UnitScale converts stripe configuration units to surface pixels.
const UnitScale = 10.0

// Overflow is how far stripes extend past the bounding box along their
// length, so rotated or curved UV islands are still fully covered.
const Overflow = 1.5

// Orientation is shared by every region and slot.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

var ErrInvalidOrientation = errors.New("invalid stripe orientation")

// ParseOrientation validates an orientation name.
func ParseOrientation(s string) (Orientation, error) {
	switch Orientation(s) {
	case Horizontal, Vertical:
		return Orientation(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOrientation, s)
}

// Rect is a filled rectangle primitive in surface pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
}

// Generate lays out stripe rectangles inside box for a surface of side size.
//
// Horizontal stripes honor count. Vertical stripes only use count as an
// on/off switch and tile the whole box width instead; existing
// configurations depend on that, so the two orientations stay asymmetric.
func Generate(o Orientation, count int, thickness, gap float64, color string, position float64, box region.Box, size float64) []Rect {
	if count <= 0 {
		return nil
	}

	t := thickness * UnitScale
	g := gap * UnitScale
	off := position * UnitScale
	step := t + g
	if step == 0 {
		return nil
	}

	startX, startY, bw, bh := box.Pixels(size)

	switch o {
	case Vertical:
		n := int(math.Ceil((bw + g) / step))
		if n <= 0 {
			return nil
		}
		height := bh * Overflow
		top := startY + bh/2 - height/2
		rects := make([]Rect, n)
		for i := range rects {
			rects[i] = Rect{
				Left:   startX + off + float64(i)*step,
				Top:    top,
				Width:  t,
				Height: height,
				Color:  color,
			}
		}
		return rects

	default:
		width := bw * Overflow
		left := startX + bw/2 - width/2
		rects := make([]Rect, count)
		for i := range rects {
			rects[i] = Rect{
				Left:   left,
				Top:    startY + off + float64(i)*step,
				Width:  width,
				Height: t,
				Color:  color,
			}
		}
		return rects
	}
}
