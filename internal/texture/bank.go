package texture

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/kitforge/kitforge/backend-go/internal/region"
)

// DefaultSize is the side of every surface in pixels.
const DefaultSize = 2048

// MaxSize bounds configurable surface sizes.
const MaxSize = 8192

type Wrap string

const (
	ClampToEdge Wrap = "clampToEdge"
	Repeat      Wrap = "repeat"
)

type Filter string

const (
	Linear  Filter = "linear"
	Nearest Filter = "nearest"
)

// Options are the sampling parameters the renderer applies to every
// garment texture. Surfaces hold flat 2D artwork, so no mip chain is built.
type Options struct {
	GenerateMipmaps bool   `json:"generateMipmaps"`
	WrapS           Wrap   `json:"wrapS"`
	WrapT           Wrap   `json:"wrapT"`
	MinFilter       Filter `json:"minFilter"`
	MagFilter       Filter `json:"magFilter"`
	FlipY           bool   `json:"flipY"`
}

// DefaultOptions returns the options shared by all textures.
func DefaultOptions() Options {
	return Options{
		GenerateMipmaps: false,
		WrapS:           ClampToEdge,
		WrapT:           ClampToEdge,
		MinFilter:       Linear,
		MagFilter:       Linear,
		FlipY:           false,
	}
}

// Texture is the GPU-facing handle of one region's surface. Version grows by
// one every time the pixels are re-uploaded.
type Texture struct {
	Region  region.ID
	Image   *image.RGBA
	Version uint64
	Options Options

	needsUpdate bool
}

// NeedsUpdate reports whether the texture was invalidated since the last flush.
func (t *Texture) NeedsUpdate() bool {
	return t.needsUpdate
}

// Bank owns one fixed-size texture per region.
type Bank struct {
	size     int
	order    []region.ID
	textures map[region.ID]*Texture
}

// NewBank allocates a size×size texture for every region.
func NewBank(size int, regions []region.ID) *Bank {
	b := &Bank{
		size:     size,
		order:    append([]region.ID(nil), regions...),
		textures: make(map[region.ID]*Texture, len(regions)),
	}
	for _, id := range regions {
		b.textures[id] = &Texture{
			Region:  id,
			Image:   image.NewRGBA(image.Rect(0, 0, size, size)),
			Options: DefaultOptions(),
		}
	}
	return b
}

// Size returns the side length shared by every surface.
func (b *Bank) Size() int {
	return b.size
}

// Regions returns the regions in flush order.
func (b *Bank) Regions() []region.ID {
	return append([]region.ID(nil), b.order...)
}

// Texture returns the region's texture handle.
func (b *Bank) Texture(id region.ID) (*Texture, error) {
	tex, ok := b.textures[id]
	if !ok {
		slog.Error("texture for unregistered region", "region", id)
		return nil, fmt.Errorf("texture: %w: %q", region.ErrUnknownRegion, id)
	}
	return tex, nil
}

// MarkDirty schedules the region for re-rendering on the next flush.
// Calling it repeatedly before a flush has the same effect as calling it once.
func (b *Bank) MarkDirty(id region.ID) error {
	tex, err := b.Texture(id)
	if err != nil {
		return err
	}
	tex.needsUpdate = true
	return nil
}

// Dirty lists regions waiting for a flush, in flush order.
func (b *Bank) Dirty() []region.ID {
	var out []region.ID
	for _, id := range b.order {
		if b.textures[id].needsUpdate {
			out = append(out, id)
		}
	}
	return out
}

// RenderFunc produces the composited surface for one region.
type RenderFunc func(id region.ID) (*image.RGBA, error)

// Flush re-renders every dirty texture exactly once and returns the regions
// whose pixels changed. A failed render leaves the texture dirty.
func (b *Bank) Flush(render RenderFunc) []region.ID {
	var updated []region.ID
	for _, id := range b.order {
		tex := b.textures[id]
		if !tex.needsUpdate {
			continue
		}

		img, err := render(id)
		if err != nil {
			slog.Warn("render surface", "region", id, "error", err)
			continue
		}
		if img.Bounds() != tex.Image.Bounds() {
			slog.Warn("surface size mismatch", "region", id, "got", img.Bounds(), "want", tex.Image.Bounds())
			continue
		}

		copy(tex.Image.Pix, img.Pix)
		tex.Version++
		tex.needsUpdate = false
		updated = append(updated, id)
	}
	return updated
}

// Bind maps each texturable mesh material to its region texture. Excluded
// trims and unknown materials are skipped.
func (b *Bank) Bind(materials []string, reg *region.Registry) map[string]*Texture {
	out := make(map[string]*Texture)
	for _, mat := range materials {
		if reg.IsExcluded(mat) {
			slog.Debug("skip excluded material", "material", mat)
			continue
		}
		id, ok := reg.ResolveRegion(mat)
		if !ok {
			slog.Warn("material has no region", "material", mat)
			continue
		}
		tex, ok := b.textures[id]
		if !ok {
			slog.Warn("region has no texture", "material", mat, "region", id)
			continue
		}
		out[mat] = tex
	}
	return out
}
