package geom

import "math"

const (
	// HotspotSize is the side of a hotspot square in surface pixels.
	HotspotSize = 64.0
	// HotspotOffset pushes a hotspot outward from its anchor corner along
	// both local axes.
	HotspotOffset = 32.0
)

// Hotspot is a square control anchored to a transformed object. It rotates
// with the object.
type Hotspot struct {
	Center Point
	Size   float64
	Angle  float64 // degrees
}

// Contains reports whether (x, y) falls inside the rotated square.
func (h Hotspot) Contains(x, y float64) bool {
	rad := Radians(-h.Angle)
	cos, sin := math.Cos(rad), math.Sin(rad)
	dx, dy := x-h.Center.X, y-h.Center.Y
	lx := dx*cos - dy*sin
	ly := dx*sin + dy*cos
	half := h.Size / 2
	return math.Abs(lx) <= half && math.Abs(ly) <= half
}

// Quad returns the hotspot's corners.
func (h Hotspot) Quad() Quad {
	return RotatedRect(h.Center.X, h.Center.Y, h.Size, h.Size, h.Angle)
}

// Anchor places a hotspot at a local offset from an object's center, with
// the offset rotated by the object's angle.
func Anchor(center Point, localX, localY, degrees, size float64) Hotspot {
	m := Translate(center.X, center.Y).Multiply(RotateDegrees(degrees))
	x, y := m.TransformPoint(localX, localY)
	return Hotspot{Center: Point{X: x, Y: y}, Size: size, Angle: degrees}
}

// ObjectHotspots returns the delete (top-right) and clone (top-left)
// controls for an object with the given center, scaled half extents and
// rotation.
func ObjectHotspots(center Point, halfW, halfH, degrees float64) (del, clone Hotspot) {
	del = Anchor(center, halfW+HotspotOffset, -halfH-HotspotOffset, degrees, HotspotSize)
	clone = Anchor(center, -halfW-HotspotOffset, -halfH-HotspotOffset, degrees, HotspotSize)
	return del, clone
}
