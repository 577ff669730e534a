package geom

// Point is a position in surface pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect represents an axis-aligned bounding box.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Contains checks if a point is inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}

	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Quad is a convex quadrilateral, typically a rotated rectangle.
type Quad [4]Point

// RotatedRect returns the corners of a w×h rectangle centered on (cx, cy)
// and rotated by degrees, clockwise from the top-left corner in y-down space.
func RotatedRect(cx, cy, w, h, degrees float64) Quad {
	m := Translate(cx, cy).Multiply(RotateDegrees(degrees))
	hw, hh := w/2, h/2
	var q Quad
	for i, c := range [4][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}} {
		q[i].X, q[i].Y = m.TransformPoint(c[0], c[1])
	}
	return q
}

// Contains reports whether (x, y) lies inside or on the quad, using the
// cross-product sign test valid for any convex polygon in either winding.
func (q Quad) Contains(x, y float64) bool {
	var positive, negative bool
	for i := range q {
		a, b := q[i], q[(i+1)%len(q)]
		cross := (b.X-a.X)*(y-a.Y) - (b.Y-a.Y)*(x-a.X)
		if cross > 0 {
			positive = true
		} else if cross < 0 {
			negative = true
		}
		if positive && negative {
			return false
		}
	}
	return true
}

// Bounds returns the quad's axis-aligned bounding box.
func (q Quad) Bounds() Rect {
	minX, minY := q[0].X, q[0].Y
	maxX, maxY := minX, minY
	for _, p := range q[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
