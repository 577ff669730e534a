package compositor

import (
	"image"

	"github.com/kitforge/kitforge/backend-go/internal/geom"
)

// Handle identifies a logo layer within its surface.
type Handle string

// CloneOffset is how far a clone is shifted from its original on both axes.
const CloneOffset = 40.0

const (
	OriginLeft   = "left"
	OriginCenter = "center"
	OriginRight  = "right"
	OriginTop    = "top"
	OriginBottom = "bottom"
)

// Style is the visual decoration of a logo.
type Style struct {
	Opacity     float64 `json:"opacity"`
	BorderColor string  `json:"borderColor"`
	CornerColor string  `json:"cornerColor"`
}

// Controls are the interactive hotspots bound to a logo.
type Controls struct {
	Delete bool `json:"delete"`
	Clone  bool `json:"clone"`
}

// DefaultStyle and DefaultControls apply to newly placed logos.
func DefaultStyle() Style {
	return Style{Opacity: 1, BorderColor: "#1e90ff", CornerColor: "#1e90ff"}
}

func DefaultControls() Controls {
	return Controls{Delete: true, Clone: true}
}

// Logo is a placed image on a surface. Left/Top locate the origin point
// named by OriginX/OriginY.
type Logo struct {
	Handle    Handle
	SourceRef string
	Image     image.Image

	// Natural image size in pixels.
	Width  float64
	Height float64

	Left    float64
	Top     float64
	ScaleX  float64
	ScaleY  float64
	Angle   float64 // degrees
	OriginX string
	OriginY string

	Style    Style
	Controls Controls
}

// NewLogo creates a centered-origin logo for img at (x, y).
func NewLogo(sourceRef string, img image.Image, x, y, scale float64) *Logo {
	l := &Logo{
		SourceRef: sourceRef,
		Image:     img,
		Left:      x,
		Top:       y,
		ScaleX:    scale,
		ScaleY:    scale,
		OriginX:   OriginCenter,
		OriginY:   OriginCenter,
		Style:     DefaultStyle(),
		Controls:  DefaultControls(),
	}
	if img != nil {
		b := img.Bounds()
		l.Width, l.Height = float64(b.Dx()), float64(b.Dy())
	}
	return l
}

// Clone returns a deep copy. The decoded image is immutable and shared.
func (l *Logo) Clone() *Logo {
	c := *l
	return &c
}

func originFactor(origin string) float64 {
	switch origin {
	case OriginLeft, OriginTop:
		return 0
	case OriginRight, OriginBottom:
		return 1
	default:
		return 0.5
	}
}

// scaled returns the on-surface width and height.
func (l *Logo) scaled() (float64, float64) {
	return l.Width * l.ScaleX, l.Height * l.ScaleY
}

// originOffset is the vector from the logo's center to its origin point in
// the unrotated local frame.
func (l *Logo) originOffset() (float64, float64) {
	w, h := l.scaled()
	return (originFactor(l.OriginX) - 0.5) * w, (originFactor(l.OriginY) - 0.5) * h
}

// Center returns the logo center in surface pixels.
func (l *Logo) Center() geom.Point {
	ox, oy := l.originOffset()
	dx, dy := geom.RotateDegrees(l.Angle).TransformPoint(ox, oy)
	return geom.Point{X: l.Left - dx, Y: l.Top - dy}
}

// SetCenter moves the logo so its center lands on p.
func (l *Logo) SetCenter(p geom.Point) {
	c := l.Center()
	l.Left += p.X - c.X
	l.Top += p.Y - c.Y
}

// Bounds returns the rotated rectangle the logo covers.
func (l *Logo) Bounds() geom.Quad {
	c := l.Center()
	w, h := l.scaled()
	return geom.RotatedRect(c.X, c.Y, w, h, l.Angle)
}

// Contains reports whether (x, y) lies on the logo, by mapping the point
// back into image pixels.
func (l *Logo) Contains(x, y float64) bool {
	inv, ok := l.Transform().Invert()
	if !ok {
		return false
	}
	u, v := inv.TransformPoint(x, y)
	const eps = 1e-9
	return u >= -eps && u <= l.Width+eps && v >= -eps && v <= l.Height+eps
}

// Extent returns the axis-aligned box the transformed image covers.
func (l *Logo) Extent() geom.Rect {
	return l.Transform().TransformRect(geom.Rect{Width: l.Width, Height: l.Height})
}

// Hotspots returns the delete and clone controls.
func (l *Logo) Hotspots() (del, clone geom.Hotspot) {
	w, h := l.scaled()
	return geom.ObjectHotspots(l.Center(), w/2, h/2, l.Angle)
}

// Transform maps image pixels to surface pixels.
func (l *Logo) Transform() geom.Matrix2D {
	c := l.Center()
	return geom.CenterTransform(c.X, c.Y, l.ScaleX, l.ScaleY, l.Angle, l.Width, l.Height)
}
