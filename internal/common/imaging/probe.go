// Package imaging reads natural sizes of photos and texture swatches
// without decoding their pixels.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmpty       = errors.New("image is empty")
	ErrUnsupported = errors.New("unsupported image format")
)

// Info is the natural size and format of an image.
type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Probe reads the image header from data.
func Probe(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, ErrEmpty
	}
	return ProbeReader(bytes.NewReader(data))
}

// ProbeReader reads the image header from r.
func ProbeReader(r io.Reader) (Info, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Info{}, ErrUnsupported
		}
		return Info{}, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("image has no area (%dx%d)", cfg.Width, cfg.Height)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}
