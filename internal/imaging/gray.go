package imaging

import (
	"image"
	"math"
)

// Gray is a single-channel floating point raster.
//
// Intensities use the 0-255 scale of 8-bit images, but are kept as float64 so
// smoothing does not quantize. Pixels are stored row-major with the origin at
// (0, 0) regardless of the bounds of the image the raster was derived from.
type Gray struct {
	// Width of the raster in pixels.
	Width int

	// Height of the raster in pixels.
	Height int

	// Pix holds Width*Height intensities, row by row.
	Pix []float64
}

// NewGray allocates a zero-filled raster of the given size.
func NewGray(width, height int) *Gray {
	return &Gray{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// At returns the intensity at (x, y). Coordinates must be in range.
func (g *Gray) At(x, y int) float64 {
	return g.Pix[y*g.Width+x]
}

// Set stores the intensity at (x, y). Coordinates must be in range.
func (g *Gray) Set(x, y int, v float64) {
	g.Pix[y*g.Width+x] = v
}

// clampedAt returns the intensity at (x, y), replicating border pixels for
// coordinates outside the raster.
func (g *Gray) clampedAt(x, y int) float64 {
	return g.Pix[clamp(y, 0, g.Height-1)*g.Width+clamp(x, 0, g.Width-1)]
}

// Clone returns a deep copy of the raster.
func (g *Gray) Clone() *Gray {
	pix := make([]float64, len(g.Pix))
	copy(pix, g.Pix)
	return &Gray{Width: g.Width, Height: g.Height, Pix: pix}
}

// Image converts the raster to an 8-bit grayscale image, rounding and
// saturating each intensity to [0, 255].
func (g *Gray) Image() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for i, v := range g.Pix {
		out.Pix[i] = saturate(v)
	}
	return out
}

// saturate rounds v and clamps it into the uint8 range.
func saturate(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
