package geom

import "math"

// Matrix2D is an affine map in surface space, stored column-major as
// [a b c d e f]:
//
//	x' = a*x + c*y + e
//	y' = b*x + d*y + f
type Matrix2D [6]float64

func Identity() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

func Translate(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// Rotate turns clockwise on screen (y points down).
func Rotate(radians float64) Matrix2D {
	sin, cos := math.Sincos(radians)
	return Matrix2D{cos, sin, -sin, cos, 0, 0}
}

func RotateDegrees(degrees float64) Matrix2D {
	return Rotate(Radians(degrees))
}

func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// Multiply composes m after n: the result applies n first.
func (m Matrix2D) Multiply(n Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*n[0] + m[2]*n[1],
		m[1]*n[0] + m[3]*n[1],
		m[0]*n[2] + m[2]*n[3],
		m[1]*n[2] + m[3]*n[3],
		m[0]*n[4] + m[2]*n[5] + m[4],
		m[1]*n[4] + m[3]*n[5] + m[5],
	}
}

func (m Matrix2D) TransformPoint(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// TransformRect maps the four corners of r and returns their bounding box.
func (m Matrix2D) TransformRect(r Rect) Rect {
	var q Quad
	for i, c := range [4][2]float64{{r.X, r.Y}, {r.X + r.Width, r.Y}, {r.X + r.Width, r.Y + r.Height}, {r.X, r.Y + r.Height}} {
		q[i].X, q[i].Y = m.TransformPoint(c[0], c[1])
	}
	return q.Bounds()
}

func (m Matrix2D) Determinant() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert returns the inverse map. ok is false for a degenerate matrix, such
// as a logo scaled to zero on one axis.
func (m Matrix2D) Invert() (inv Matrix2D, ok bool) {
	det := m.Determinant()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Identity(), false
	}
	k := 1 / det
	return Matrix2D{
		m[3] * k,
		-m[1] * k,
		-m[2] * k,
		m[0] * k,
		(m[2]*m[5] - m[3]*m[4]) * k,
		(m[1]*m[4] - m[0]*m[5]) * k,
	}, true
}

// CenterTransform places a w×h image so its center lands on (cx, cy),
// scaled by (sx, sy) and rotated by degrees about that center.
func CenterTransform(cx, cy, sx, sy, degrees, w, h float64) Matrix2D {
	return Translate(cx, cy).
		Multiply(RotateDegrees(degrees)).
		Multiply(Scale(sx, sy)).
		Multiply(Translate(-w/2, -h/2))
}
