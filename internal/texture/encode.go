package texture

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/HugoSmits86/nativewebp"
)

type Format string

const (
	PNG  Format = "png"
	WebP Format = "webp"
)

var ErrUnknownFormat = errors.New("unknown texture format")

// ParseFormat validates an output format name. Empty means PNG.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", PNG:
		return PNG, nil
	case WebP:
		return WebP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == WebP {
		return "image/webp"
	}
	return "image/png"
}

// Encode writes img in the requested format. WebP output is lossless.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case WebP:
		if err := nativewebp.Encode(w, img, nil); err != nil {
			return fmt.Errorf("texture: encode webp: %w", err)
		}
	case PNG, "":
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("texture: encode png: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	return nil
}
