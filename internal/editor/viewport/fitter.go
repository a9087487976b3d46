package viewport

import (
	"fmt"

	"palitra/internal/editor/geometry"
)

// ============================================================
// Viewport Fitter
// ============================================================

const (
	DefaultWidth   = 800
	DefaultHeight  = 600
	DefaultPadding = 32
)

// Size is a canvas size in canvas pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Fitter fits a photo into its container without distortion. Until both the
// container and the image are known it reports the default size.
type Fitter struct {
	padding float64

	containerW, containerH float64
	imageW, imageH         float64
	loadErr                error

	canvas Size
}

func NewFitter(padding float64) *Fitter {
	if padding < 0 {
		padding = 0
	}
	f := &Fitter{padding: padding}
	f.refit()
	return f
}

// Resize records the container's outer size. Padding is subtracted and the
// result is clamped at zero.
func (f *Fitter) Resize(width, height float64) {
	f.containerW = max(0, width-f.padding)
	f.containerH = max(0, height-f.padding)
	f.refit()
}

// ImageLoaded records the natural size of a newly loaded photo.
func (f *Fitter) ImageLoaded(width, height int) {
	if width <= 0 || height <= 0 {
		f.ImageFailed(fmt.Errorf("image has no area (%dx%d)", width, height))
		return
	}
	f.imageW, f.imageH = float64(width), float64(height)
	f.loadErr = nil
	f.refit()
}

// ImageFailed records a failed photo load. The fitter forgets any previous
// image and keeps reporting the default size.
func (f *Fitter) ImageFailed(err error) {
	f.imageW, f.imageH = 0, 0
	f.loadErr = err
	f.refit()
}

// RecordFailure records a failed load of a replacement photo. The current
// image stays fitted so existing geometry keeps its transform.
func (f *Fitter) RecordFailure(err error) {
	f.loadErr = err
}

// ClearImage forgets the photo without recording a failure.
func (f *Fitter) ClearImage() {
	f.imageW, f.imageH = 0, 0
	f.loadErr = nil
	f.refit()
}

// LoadError is the last photo load failure, nil after a successful load.
func (f *Fitter) LoadError() error {
	return f.loadErr
}

// Ready reports whether container and image are both known.
func (f *Fitter) Ready() bool {
	return f.containerW > 0 && f.containerH > 0 && f.imageW > 0 && f.imageH > 0
}

func (f *Fitter) Size() Size {
	return f.canvas
}

// Scale returns canvas pixels per image pixel on each axis. ok is false
// while the fitter is not ready; the returned scale is then 1.
func (f *Fitter) Scale() (scaleX, scaleY float64, ok bool) {
	if !f.Ready() {
		return 1, 1, false
	}
	return f.canvas.Width / f.imageW, f.canvas.Height / f.imageH, true
}

// ToCanvas projects an image-space point into canvas space.
func (f *Fitter) ToCanvas(p geometry.Point) geometry.Point {
	sx, sy, _ := f.Scale()
	return geometry.Point{X: p.X * sx, Y: p.Y * sy}
}

// ToImage maps a canvas-space point back into image space.
func (f *Fitter) ToImage(p geometry.Point) geometry.Point {
	sx, sy, _ := f.Scale()
	return geometry.Point{X: p.X / sx, Y: p.Y / sy}
}

func (f *Fitter) refit() {
	if !f.Ready() {
		f.canvas = Size{Width: DefaultWidth, Height: DefaultHeight}
		return
	}
	f.canvas = Fit(f.containerW, f.containerH, f.imageW, f.imageH)
}

// Fit computes the largest canvas with the image's aspect ratio that fits
// inside the container.
func Fit(containerW, containerH, imageW, imageH float64) Size {
	containerAspect := containerW / containerH
	imageAspect := imageW / imageH

	if imageAspect > containerAspect {
		// wider than the container: fit to width
		return Size{Width: containerW, Height: containerW * imageH / imageW}
	}
	return Size{Width: containerH * imageW / imageH, Height: containerH}
}
