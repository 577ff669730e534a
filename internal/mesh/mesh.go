package mesh

import "math"

// Group is a run of triangles sharing one material. Indices address the
// mesh's vertex arrays, three per triangle.
type Group struct {
	Material string
	Indices  []int
}

// Mesh is a triangle mesh with one UV per vertex.
type Mesh struct {
	Name      string
	Positions []Vec3
	UVs       []Vec2
	Groups    []Group
}

// Hit is the nearest intersection of a ray with a scene.
type Hit struct {
	Mesh     string
	Material string
	UV       Vec2
	Point    Vec3
	Distance float64
}

// Raycaster answers ray queries against the 3D scene.
type Raycaster interface {
	Intersect(r Ray) (Hit, bool)
}

// Scene is a software raycaster over a set of meshes.
type Scene struct {
	Meshes []*Mesh
}

// NewScene creates a scene from meshes.
func NewScene(meshes ...*Mesh) *Scene {
	return &Scene{Meshes: meshes}
}

// Intersect returns the nearest hit across all meshes.
func (s *Scene) Intersect(r Ray) (Hit, bool) {
	best := Hit{Distance: math.Inf(1)}
	found := false

	for _, m := range s.Meshes {
		for _, g := range m.Groups {
			for i := 0; i+2 < len(g.Indices); i += 3 {
				ia, ib, ic := g.Indices[i], g.Indices[i+1], g.Indices[i+2]
				t, u, v, ok := r.IntersectTriangle(m.Positions[ia], m.Positions[ib], m.Positions[ic])
				if !ok || t >= best.Distance {
					continue
				}
				best = Hit{
					Mesh:     m.Name,
					Material: g.Material,
					UV:       m.interpolateUV(ia, ib, ic, u, v),
					Point:    r.At(t),
					Distance: t,
				}
				found = true
			}
		}
	}

	return best, found
}

func (m *Mesh) interpolateUV(ia, ib, ic int, u, v float64) Vec2 {
	if len(m.UVs) <= max(ia, ib, ic) {
		return Vec2{}
	}
	w := 1 - u - v
	a, b, c := m.UVs[ia], m.UVs[ib], m.UVs[ic]
	return Vec2{
		w*a[0] + u*b[0] + v*c[0],
		w*a[1] + u*b[1] + v*c[1],
	}
}

// Materials lists every material name used by the scene, first use first.
func (s *Scene) Materials() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range s.Meshes {
		for _, g := range m.Groups {
			if !seen[g.Material] {
				seen[g.Material] = true
				out = append(out, g.Material)
			}
		}
	}
	return out
}

// Camera is a perspective camera used to turn pointer positions into rays.
type Camera struct {
	Position Vec3
	Target   Vec3
	FOV      float64 // vertical, degrees
	Aspect   float64
}

var worldUp = Vec3{0, 1, 0}

// Ray returns the ray through normalized device coordinates (x right,
// y up, both in [-1, 1]).
func (c Camera) Ray(ndcX, ndcY float64) Ray {
	forward := c.Target.Sub(c.Position).Normalize()
	right := forward.Cross(worldUp).Normalize()
	up := right.Cross(forward)

	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	tanHalf := math.Tan(c.FOV * math.Pi / 360)

	dir := forward.
		Add(right.Scale(ndcX * tanHalf * aspect)).
		Add(up.Scale(ndcY * tanHalf))
	return Ray{Origin: c.Position, Dir: dir.Normalize()}
}
