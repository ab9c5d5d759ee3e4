package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
)

// Connectivity selects the pixel neighborhood used when tracing weak edges
// back to strong ones during hysteresis.
type Connectivity int

const (
	// Connectivity4 links a pixel to its horizontal and vertical neighbors.
	Connectivity4 Connectivity = 4

	// Connectivity8 also links diagonal neighbors. This is the default.
	Connectivity8 Connectivity = 8
)

// Valid reports whether c is a supported neighborhood.
func (c Connectivity) Valid() bool {
	return c == Connectivity4 || c == Connectivity8
}

var (
	neighbors4 = []image.Point{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}
	neighbors8 = []image.Point{
		{X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
		{X: -1, Y: 0}, {X: 1, Y: 0},
		{X: -1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 1},
	}
)

func (c Connectivity) offsets() []image.Point {
	if c == Connectivity4 {
		return neighbors4
	}
	return neighbors8
}

// EdgeMap is a binary edge image. Pix[y*Width+x] is true for edge pixels.
// Its dimensions always match the raster it was extracted from.
type EdgeMap struct {
	Width  int
	Height int
	Pix    []bool
}

// NewEdgeMap allocates an empty edge map.
func NewEdgeMap(width, height int) *EdgeMap {
	return &EdgeMap{Width: width, Height: height, Pix: make([]bool, width*height)}
}

// At reports whether (x, y) is an edge pixel. Out-of-range coordinates are
// never edges.
func (e *EdgeMap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= e.Width || y >= e.Height {
		return false
	}
	return e.Pix[y*e.Width+x]
}

// Count returns the number of edge pixels.
func (e *EdgeMap) Count() int {
	n := 0
	for _, v := range e.Pix {
		if v {
			n++
		}
	}
	return n
}

// Points returns the coordinates of all edge pixels in row-major order.
func (e *EdgeMap) Points() []image.Point {
	points := make([]image.Point, 0, e.Count())
	for y := 0; y < e.Height; y++ {
		row := e.Pix[y*e.Width : (y+1)*e.Width]
		for x, v := range row {
			if v {
				points = append(points, image.Point{X: x, Y: y})
			}
		}
	}
	return points
}

// Image renders the edge map as an 8-bit grayscale image where white pixels
// (255) are edges and black pixels (0) are not.
func (e *EdgeMap) Image() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, e.Width, e.Height))
	for i, v := range e.Pix {
		if v {
			out.Pix[i] = 255
		}
	}
	return out
}

// GradientField holds the per-pixel Sobel response of a raster.
type GradientField struct {
	Width  int
	Height int

	// GX and GY are the horizontal and vertical derivatives. Y grows downward,
	// so a positive GY means intensity increases towards the bottom.
	GX []float64
	GY []float64

	// Magnitude is sqrt(GX² + GY²).
	Magnitude []float64

	// Direction is atan2(GY, GX) in radians, in (-π, π].
	Direction []float64
}

// Unit returns the unit gradient vector at (x, y) and false when the gradient
// vanishes there.
func (g *GradientField) Unit(x, y int) (dx, dy float64, ok bool) {
	i := y*g.Width + x
	mag := g.Magnitude[i]
	if mag == 0 {
		return 0, 0, false
	}
	return g.GX[i] / mag, g.GY[i] / mag, true
}

// ValidateThresholds checks a hysteresis threshold pair.
func ValidateThresholds(low, high float64) error {
	if math.IsNaN(low) || math.IsInf(low, 0) || math.IsNaN(high) || math.IsInf(high, 0) {
		return fmt.Errorf("%w: edge thresholds must be finite (low=%v, high=%v)", ErrInvalidConfig, low, high)
	}
	if low < 0 || high < 0 {
		return fmt.Errorf("%w: edge thresholds must be >= 0 (low=%v, high=%v)", ErrInvalidConfig, low, high)
	}
	if low > high {
		return fmt.Errorf("%w: low threshold %v exceeds high threshold %v", ErrInvalidConfig, low, high)
	}
	return nil
}

// ExtractEdges performs Canny-style edge detection on a smoothed raster.
//
// Parameters:
//   - blurred: Smoothed grayscale raster (see Prepare).
//   - low: Lower hysteresis threshold on the Sobel magnitude.
//   - high: Upper hysteresis threshold on the Sobel magnitude.
//   - conn: Neighborhood used to connect weak edges to strong ones.
//
// Returns:
//   - *EdgeMap: Binary edge map with the dimensions of blurred.
//   - *GradientField: The Sobel gradients the edges were derived from.
//   - error: ErrInvalidConfig for bad thresholds or connectivity,
//     ErrInvalidInput for an empty raster.
//
// # Algorithm
//
//  1. Gradient computation: Sobel operators for X and Y gradients
//     magnitude = sqrt(Gx² + Gy²)
//     direction = atan2(Gy, Gx)
//
//  2. Non-maximum suppression: a pixel survives only if its magnitude is a
//     local maximum among its two neighbors along the gradient direction,
//     quantized to 0°, 45°, 90° or 135°
//
//  3. Hysteresis thresholding:
//     - Pixels at or above high are strong edges (always kept)
//     - Pixels between low and high are weak edges
//     (kept only if a chain of weak edges connects them to a strong edge)
//     - Pixels below low, or with zero gradient, are discarded
//
// Thresholds apply to the raw Sobel magnitude of 0-255 intensities, so a step
// between black and white produces a magnitude of about 1020.
func ExtractEdges(blurred *Gray, low, high float64, conn Connectivity) (*EdgeMap, *GradientField, error) {
	if err := ValidateThresholds(low, high); err != nil {
		return nil, nil, err
	}
	if !conn.Valid() {
		return nil, nil, fmt.Errorf("%w: connectivity must be 4 or 8, got %d", ErrInvalidConfig, conn)
	}
	if blurred == nil || blurred.Width <= 0 || blurred.Height <= 0 {
		return nil, nil, fmt.Errorf("%w: empty raster", ErrInvalidInput)
	}

	grad := Gradients(blurred)
	suppressed := suppressNonMaxima(grad)
	edges := hysteresis(suppressed, grad.Width, grad.Height, low, high, conn)
	return edges, grad, nil
}

// Gradients computes the Sobel gradient field of a raster.
// Border pixels use clamped (replicated) edge values.
func Gradients(src *Gray) *GradientField {
	width, height := src.Width, src.Height
	n := width * height
	grad := &GradientField{
		Width:     width,
		Height:    height,
		GX:        make([]float64, n),
		GY:        make([]float64, n),
		Magnitude: make([]float64, n),
		Direction: make([]float64, n),
	}

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				tl := src.clampedAt(x-1, y-1)
				tc := src.clampedAt(x, y-1)
				tr := src.clampedAt(x+1, y-1)
				ml := src.clampedAt(x-1, y)
				mr := src.clampedAt(x+1, y)
				bl := src.clampedAt(x-1, y+1)
				bc := src.clampedAt(x, y+1)
				br := src.clampedAt(x+1, y+1)

				gx := (tr + 2*mr + br) - (tl + 2*ml + bl)
				gy := (bl + 2*bc + br) - (tl + 2*tc + tr)

				i := y*width + x
				grad.GX[i] = gx
				grad.GY[i] = gy
				grad.Magnitude[i] = math.Sqrt(gx*gx + gy*gy)
				grad.Direction[i] = math.Atan2(gy, gx)
			}
		}
	})
	return grad
}

// suppressNonMaxima thins gradient ridges to one pixel.
//
// The comparison is strict on the "backward" neighbor and inclusive on the
// "forward" one, so a plateau two pixels wide keeps exactly one pixel.
// Border pixels are always suppressed.
func suppressNonMaxima(grad *GradientField) []float64 {
	width, height := grad.Width, grad.Height
	mag := grad.Magnitude
	out := make([]float64, width*height)
	if width < 3 || height < 3 {
		return out
	}

	parallel.Line(height-2, func(start, end int) {
		for y := start + 1; y < end+1; y++ {
			for x := 1; x < width-1; x++ {
				i := y*width + x
				m := mag[i]
				if m == 0 {
					continue
				}

				// Fold the direction into [0, π) since NMS is symmetric.
				angle := grad.Direction[i]
				if angle < 0 {
					angle += math.Pi
				}

				var back, fwd float64
				switch {
				case angle < math.Pi/8 || angle >= 7*math.Pi/8:
					// Horizontal gradient
					back, fwd = mag[i-1], mag[i+1]
				case angle < 3*math.Pi/8:
					// Gradient towards bottom-right (y grows downward)
					back, fwd = mag[i-width-1], mag[i+width+1]
				case angle < 5*math.Pi/8:
					// Vertical gradient
					back, fwd = mag[i-width], mag[i+width]
				default:
					// Gradient towards bottom-left
					back, fwd = mag[i-width+1], mag[i+width-1]
				}

				if m > back && m >= fwd {
					out[i] = m
				}
			}
		}
	})
	return out
}

// hysteresis applies the double threshold and traces weak edges from strong
// seeds with an explicit stack. Every pixel is pushed at most once, so the
// trace terminates in O(width*height) regardless of the edge topology.
func hysteresis(suppressed []float64, width, height int, low, high float64, conn Connectivity) *EdgeMap {
	edges := NewEdgeMap(width, height)
	visited := make([]bool, width*height)
	offsets := conn.offsets()

	var stack []int
	for i, v := range suppressed {
		if v > 0 && v >= high && !visited[i] {
			visited[i] = true
			stack = append(stack, i)
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		edges.Pix[i] = true

		x, y := i%width, i/width
		for _, off := range offsets {
			nx, ny := x+off.X, y+off.Y
			if nx < 0 || ny < 0 || nx >= width || ny >= height {
				continue
			}
			j := ny*width + nx
			if visited[j] {
				continue
			}
			if v := suppressed[j]; v > 0 && v >= low {
				visited[j] = true
				stack = append(stack, j)
			}
		}
	}
	return edges
}
