package mesh

import "math"

// Ray is a half-line from Origin along the unit vector Dir.
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Dir.Scale(t))
}

const intersectEpsilon = 1e-9

// IntersectTriangle returns the distance along the ray and the barycentric
// weights (u, v) of b and c for the first hit on triangle abc. Both faces are
// hit, since garment panels are viewed from inside and out.
func (r Ray) IntersectTriangle(a, b, c Vec3) (t, u, v float64, ok bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < intersectEpsilon {
		return 0, 0, 0, false
	}
	inv := 1 / det

	s := r.Origin.Sub(a)
	u = s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}

	q := s.Cross(e1)
	v = r.Dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}

	t = e2.Dot(q) * inv
	if t <= intersectEpsilon {
		return 0, 0, 0, false
	}
	return t, u, v, true
}
