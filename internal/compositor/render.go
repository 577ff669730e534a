package compositor

import (
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/kitforge/kitforge/backend-go/internal/geom"
	"github.com/kitforge/kitforge/backend-go/internal/region"
)

// Render composites a region's layers bottom to top into a new image.
// Fills and stripes go through the vector rasterizer; logos are resampled
// with their full affine transform.
func (c *Compositor) Render(id region.ID) (*image.RGBA, error) {
	s, err := c.Surface(id)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(s.Size, s.Size)
	defer dc.Close()

	if d := s.design(); d.Color != "" {
		dc.ClearWithColor(gg.Hex(d.Color))
	} else {
		dc.Clear()
	}
	if d := s.design(); d.Image != nil {
		drawCover(dc, d.Image, s.Size)
	}

	for _, l := range s.layers {
		if l.Kind != KindStripe {
			continue
		}
		for _, r := range l.Rects {
			dc.SetHexColor(r.Color)
			dc.DrawRectangle(r.Left, r.Top, r.Width, r.Height)
			if err := dc.Fill(); err != nil {
				return nil, fmt.Errorf("compositor: fill stripe %s/%s: %w", id, l.Slot, err)
			}
		}
	}

	out := toRGBA(dc.Image())
	for _, l := range s.layers {
		if l.Kind == KindLogo {
			drawLogo(out, l.Logo)
		}
	}
	return out, nil
}

// drawCover scales img uniformly so it covers the square surface, cropping
// the longer side around its center.
func drawCover(dc *gg.Context, img image.Image, size int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}
	side := min(w, h)
	src := image.Rect(0, 0, side, side).Add(image.Pt((w-side)/2, (h-side)/2))

	dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
		X:             0,
		Y:             0,
		DstWidth:      float64(size),
		DstHeight:     float64(size),
		SrcRect:       &src,
		Interpolation: gg.InterpBilinear,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	})
}

func drawLogo(dst *image.RGBA, l *Logo) {
	if l.Image == nil || l.Width == 0 || l.Height == 0 || l.Style.Opacity <= 0 {
		return
	}
	b := l.Image.Bounds()
	m := l.Transform().Multiply(geom.Translate(-float64(b.Min.X), -float64(b.Min.Y)))
	s2d := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}

	var opts *draw.Options
	if op := l.Style.Opacity; op < 1 {
		opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha16{A: uint16(op * 0xffff)})}
	}
	draw.BiLinear.Transform(dst, s2d, l.Image, b, draw.Over, opts)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	stddraw.Draw(out, out.Bounds(), img, img.Bounds().Min, stddraw.Src)
	return out
}
