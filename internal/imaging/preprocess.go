package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
)

// DefaultBlurSigma is the smoothing applied when the caller does not pick one.
// It matches the 5x5 kernel (sigma ≈ 1.4) traditionally used ahead of Canny,
// rounded up slightly so that single-pixel noise is fully absorbed.
const DefaultBlurSigma = 1.5

// Prepare converts an image to grayscale and smooths it.
//
// Parameters:
//   - img: Source image (color or grayscale). It is never modified.
//   - sigma: Standard deviation of the Gaussian smoothing kernel in pixels.
//     Zero disables smoothing, in which case blurred is a copy of gray.
//
// Returns:
//   - gray: The luma image, same dimensions as img, origin at (0, 0).
//   - blurred: The smoothed luma image.
//   - err: ErrInvalidInput for a nil or empty image, ErrInvalidConfig for a
//     negative or non-finite sigma.
//
// Rows are processed in parallel; the output does not depend on the number of
// goroutines used.
func Prepare(img image.Image, sigma float64) (gray, blurred *Gray, err error) {
	if img == nil {
		return nil, nil, fmt.Errorf("%w: image is nil", ErrInvalidInput)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, nil, fmt.Errorf("%w: image has zero size %dx%d", ErrInvalidInput, bounds.Dx(), bounds.Dy())
	}
	if sigma < 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, nil, fmt.Errorf("%w: blur sigma %v must be a finite value >= 0", ErrInvalidConfig, sigma)
	}

	gray = Grayscale(img)
	blurred = GaussianBlur(gray, sigma)
	return gray, blurred, nil
}

// Grayscale converts an image to a luma raster using ITU-R BT.601 weights
// (0.299*R + 0.587*G + 0.114*B) on 8-bit channel values.
//
// The source is first normalized to NRGBA so that every image type, including
// paletted and YCbCr images, goes through the same fast path.
func Grayscale(img image.Image) *Gray {
	src := imaging.Clone(img)
	width := src.Rect.Dx()
	height := src.Rect.Dy()
	out := NewGray(width, height)

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+width*4]
			dst := out.Pix[y*width : (y+1)*width]
			for x := range dst {
				r := float64(row[x*4])
				g := float64(row[x*4+1])
				b := float64(row[x*4+2])
				dst[x] = 0.299*r + 0.587*g + 0.114*b
			}
		}
	})
	return out
}

// GaussianKernel returns a normalized 1-D Gaussian kernel for sigma.
//
// The kernel radius is ceil(3*sigma), so the kernel has 2*radius+1 taps and
// covers more than 99.7% of the distribution. A zero sigma yields the
// identity kernel {1}.
func GaussianKernel(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// GaussianBlur smooths a raster with a separable Gaussian filter.
//
// The horizontal pass runs first, then the vertical pass. Border pixels use
// clamped (replicated) edge values. The input raster is not modified.
func GaussianBlur(src *Gray, sigma float64) *Gray {
	if sigma <= 0 {
		return src.Clone()
	}
	kernel := GaussianKernel(sigma)
	radius := len(kernel) / 2
	width, height := src.Width, src.Height

	tmp := NewGray(width, height)
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				var sum float64
				for k := -radius; k <= radius; k++ {
					sum += src.clampedAt(x+k, y) * kernel[k+radius]
				}
				tmp.Pix[y*width+x] = sum
			}
		}
	})

	out := NewGray(width, height)
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				var sum float64
				for k := -radius; k <= radius; k++ {
					sum += tmp.clampedAt(x, y+k) * kernel[k+radius]
				}
				out.Pix[y*width+x] = sum
			}
		}
	})
	return out
}
