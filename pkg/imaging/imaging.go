// Package imaging decodes source images and reduces them to luminance rasters
// from which trap sites are extracted.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Raster is a luminance map of an image. Rows run top down as in the source
// image; values are in [0,1] with 0 black and 1 white.
type Raster struct {
	Width  int
	Height int
	Format string

	lum    []float64
	opaque []bool
}

// Open decodes the image at path. Only the first frame of animated formats is used.
func Open(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}
	return img, format, nil
}

// Load decodes the image at path into a Raster
func Load(path string) (*Raster, error) {
	img, format, err := Open(path)
	if err != nil {
		return nil, err
	}
	r := NewRaster(img)
	r.Format = format
	return r, nil
}

// NewRaster converts img to luminance. Fully transparent pixels are marked
// as not opaque and carry luminance 1.
func NewRaster(img image.Image) *Raster {
	b := img.Bounds()
	r := &Raster{
		Width:  b.Dx(),
		Height: b.Dy(),
		lum:    make([]float64, b.Dx()*b.Dy()),
		opaque: make([]bool, b.Dx()*b.Dy()),
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.At(x, y)
			_, _, _, a := c.RGBA()
			if a == 0 {
				r.lum[i] = 1
				i++
				continue
			}
			g := color.Gray16Model.Convert(c).(color.Gray16)
			r.lum[i] = float64(g.Y) / 0xffff
			r.opaque[i] = true
			i++
		}
	}
	return r
}

// FromValues builds a raster from row-major luminance values, all opaque
func FromValues(width, height int, values []float64) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	if len(values) != width*height {
		return nil, fmt.Errorf("raster needs %d values, got %d", width*height, len(values))
	}
	r := &Raster{
		Width:  width,
		Height: height,
		lum:    append([]float64(nil), values...),
		opaque: make([]bool, len(values)),
	}
	for i := range r.opaque {
		r.opaque[i] = true
	}
	return r, nil
}

// At returns the luminance at column x, row y (row 0 is the top of the image)
func (r *Raster) At(x, y int) float64 {
	return r.lum[y*r.Width+x]
}

// Opaque reports whether the pixel at x, y is visible
func (r *Raster) Opaque(x, y int) bool {
	return r.opaque[y*r.Width+x]
}

// Values returns the luminance of every opaque pixel
func (r *Raster) Values() []float64 {
	out := make([]float64, 0, len(r.lum))
	for i, v := range r.lum {
		if r.opaque[i] {
			out = append(out, v)
		}
	}
	return out
}

// Mask marks pixels on the trap side of threshold: darker than it, or at
// least as bright when invert is set. Transparent pixels are never marked.
func (r *Raster) Mask(threshold float64, invert bool) []bool {
	mask := make([]bool, len(r.lum))
	for i, v := range r.lum {
		if !r.opaque[i] {
			continue
		}
		if invert {
			mask[i] = v >= threshold
		} else {
			mask[i] = v < threshold
		}
	}
	return mask
}

// Intensity is how strongly a pixel belongs to the trap side: darkness
// normally, brightness when inverted.
func (r *Raster) Intensity(x, y int, invert bool) float64 {
	v := r.At(x, y)
	if invert {
		return v
	}
	return 1 - v
}
