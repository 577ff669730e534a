package camera

import (
	"math"

	"github.com/kitforge/kitforge/backend-go/internal/mesh"
)

// Spherical is a point in spherical coordinates about the origin, with +Y
// up. Phi is the polar angle from +Y and Theta the azimuth around Y,
// measured from +Z toward +X.
type Spherical struct {
	Radius float64
	Phi    float64
	Theta  float64
}

// ToSpherical converts a Cartesian point.
func ToSpherical(v mesh.Vec3) Spherical {
	r := v.Len()
	if r == 0 {
		return Spherical{}
	}
	return Spherical{
		Radius: r,
		Theta:  math.Atan2(v[0], v[2]),
		Phi:    math.Acos(math.Max(-1, math.Min(1, v[1]/r))),
	}
}

// Vec3 converts back to Cartesian.
func (s Spherical) Vec3() mesh.Vec3 {
	sinPhi := math.Sin(s.Phi)
	return mesh.Vec3{
		s.Radius * sinPhi * math.Sin(s.Theta),
		s.Radius * math.Cos(s.Phi),
		s.Radius * sinPhi * math.Cos(s.Theta),
	}
}

// Lerp interpolates each coordinate independently. The azimuth is not
// wrapped, so a path may go the long way around.
func (s Spherical) Lerp(to Spherical, t float64) Spherical {
	return Spherical{
		Radius: s.Radius + (to.Radius-s.Radius)*t,
		Phi:    s.Phi + (to.Phi-s.Phi)*t,
		Theta:  s.Theta + (to.Theta-s.Theta)*t,
	}
}
