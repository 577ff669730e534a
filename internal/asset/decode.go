package asset

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// Extensions lists the image formats assets may use.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tga"}

// Ext returns the lower-cased extension of a reference, ignoring any query
// string or fragment.
func Ext(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return strings.ToLower(path.Ext(ref))
}

var (
	// ErrUnknownFormat is returned for content no decoder recognises.
	ErrUnknownFormat = errors.New("asset: unknown image format")
	// ErrTooLarge is returned when a header declares more than MaxPixels.
	ErrTooLarge = errors.New("asset: image too large")
)

// MaxPixels bounds the declared width*height of any decoded image.
const MaxPixels = 8192 * 8192

// sniffLen covers every signature the matcher checks.
const sniffLen = 262

type codec struct {
	name   string
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

var codecs = map[string]codec{
	".png":  {"png", png.Decode, png.DecodeConfig},
	".jpg":  {"jpeg", jpeg.Decode, jpeg.DecodeConfig},
	".jpeg": {"jpeg", jpeg.Decode, jpeg.DecodeConfig},
	".gif":  {"gif", gif.Decode, gif.DecodeConfig},
	".bmp":  {"bmp", bmp.Decode, bmp.DecodeConfig},
	".webp": {"webp", webp.Decode, webp.DecodeConfig},
	".tga":  {"tga", tga.Decode, tga.DecodeConfig},
}

// Decode reads an image, choosing the decoder from name's extension and
// falling back to content sniffing. TGA has no signature and is only
// recognised by extension. The header is checked against MaxPixels before
// any pixel memory is allocated.
func Decode(r io.Reader, name string) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("asset: read %q: %w", name, err)
	}

	ext := Ext(name)
	if !isKnown(ext) {
		head := data[:min(len(data), sniffLen)]
		kind, err := filetype.Match(head)
		if err != nil || kind == filetype.Unknown || !filetype.IsImage(head) {
			return nil, "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
		}
		ext = "." + kind.Extension
		if !isKnown(ext) {
			return nil, "", fmt.Errorf("%w: %s", ErrUnknownFormat, kind.MIME.Value)
		}
	}
	c := codecs[ext]

	cfg, err := c.config(bytes.NewReader(data))
	if err != nil {
		return nil, c.name, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, c.name, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, err := c.decode(bytes.NewReader(data))
	return img, c.name, err
}

func isKnown(ext string) bool {
	_, ok := codecs[ext]
	return ok && slices.Contains(Extensions, ext)
}

// Normalize converts img to RGBA with its origin at (0, 0), scaling it down
// so neither side exceeds maxSide. maxSide <= 0 disables scaling.
func Normalize(img image.Image, maxSide int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide > 0 && (w > maxSide || h > maxSide) {
		if w >= h {
			w, h = maxSide, max(1, h*maxSide/w)
		} else {
			w, h = max(1, w*maxSide/h), maxSide
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}

	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
