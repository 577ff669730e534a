package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixInvert(t *testing.T) {
	m := CenterTransform(500, 400, 2, 0.5, 30, 100, 60)
	x, y := m.TransformPoint(50, 30)
	assert.InDelta(t, 500, x, 1e-9)
	assert.InDelta(t, 400, y, 1e-9)

	inv, ok := m.Invert()
	require.True(t, ok)
	u, v := inv.TransformPoint(x, y)
	assert.InDelta(t, 50, u, 1e-9)
	assert.InDelta(t, 30, v, 1e-9)
	product := m.Multiply(inv)
	for i, want := range Identity() {
		assert.InDelta(t, want, product[i], 1e-9)
	}

	_, ok = CenterTransform(0, 0, 0, 1, 0, 10, 10).Invert()
	assert.False(t, ok)
}

func TestTransformRect(t *testing.T) {
	r := RotateDegrees(90).TransformRect(Rect{X: 0, Y: 0, Width: 10, Height: 20})
	assert.InDelta(t, -20, r.X, 1e-9)
	assert.InDelta(t, 20, r.Width, 1e-9)
	assert.InDelta(t, 10, r.Height, 1e-9)
}

func TestRectUnion(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 5, Y: -5, Width: 10, Height: 10}
	assert.Equal(t, Rect{X: 0, Y: -5, Width: 15, Height: 15}, a.Union(b))
	assert.Equal(t, a, Rect{}.Union(a))
	assert.True(t, a.Contains(10, 10))
	assert.False(t, a.Contains(10.01, 0))
}

func TestQuadContains(t *testing.T) {
	q := RotatedRect(100, 100, 100, 20, 0)
	assert.True(t, q.Contains(140, 105))
	assert.False(t, q.Contains(100, 120))

	q = RotatedRect(100, 100, 100, 20, 90)
	assert.True(t, q.Contains(105, 140))
	assert.False(t, q.Contains(140, 105))

	b := q.Bounds()
	assert.InDelta(t, 20, b.Width, 1e-9)
	assert.InDelta(t, 100, b.Height, 1e-9)
}

func TestHotspotUnrotated(t *testing.T) {
	del, clone := ObjectHotspots(Point{X: 500, Y: 500}, 50, 25, 0)

	assert.InDelta(t, 582, del.Center.X, 1e-9)
	assert.InDelta(t, 443, del.Center.Y, 1e-9)
	assert.InDelta(t, 418, clone.Center.X, 1e-9)
	assert.InDelta(t, 443, clone.Center.Y, 1e-9)

	assert.True(t, del.Contains(582, 443))
	assert.True(t, del.Contains(582+31, 443-31))
	assert.False(t, del.Contains(582+33, 443))
	assert.False(t, clone.Contains(582, 443))
}

func TestHotspotRotatesWithObject(t *testing.T) {
	center := Point{X: 500, Y: 500}
	del, _ := ObjectHotspots(center, 50, 25, 90)

	// Rotating 90° clockwise (y-down) maps local (82, -57) to (57, 82).
	assert.InDelta(t, 557, del.Center.X, 1e-9)
	assert.InDelta(t, 582, del.Center.Y, 1e-9)
	assert.True(t, del.Contains(557, 582))
	assert.False(t, del.Contains(582, 443))

	// A 45° hotspot no longer covers its axis-aligned corner.
	h := Hotspot{Center: Point{}, Size: 64, Angle: 45}
	assert.True(t, h.Contains(0, 44))
	assert.False(t, h.Contains(31, 31))
	assert.Len(t, h.Quad(), 4)
}
