package imaging

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extract(t *testing.T, img image.Image, low, high float64, conn Connectivity) (*EdgeMap, *GradientField) {
	t.Helper()
	_, blurred, err := Prepare(img, 1.0)
	require.NoError(t, err)
	edges, grad, err := ExtractEdges(blurred, low, high, conn)
	require.NoError(t, err)
	return edges, grad
}

func TestExtractEdges_InvalidConfig(t *testing.T) {
	raster := NewGray(10, 10)

	tests := []struct {
		name      string
		low, high float64
		conn      Connectivity
	}{
		{"low above high", 100, 50, Connectivity8},
		{"negative low", -1, 50, Connectivity8},
		{"negative high", 0, -1, Connectivity8},
		{"nan", math.NaN(), 50, Connectivity8},
		{"bad connectivity", 50, 100, Connectivity(6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ExtractEdges(raster, tt.low, tt.high, tt.conn)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestExtractEdges_EmptyRaster(t *testing.T) {
	_, _, err := ExtractEdges(&Gray{}, 10, 20, Connectivity8)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestExtractEdges_UniformImage(t *testing.T) {
	// Uniform image should have no edges, even with zero thresholds
	img := createInMemoryImage(50, 50, color.RGBA{128, 128, 128, 255})

	edges, grad := extract(t, img, 0, 0, Connectivity8)
	assert.Equal(t, 0, edges.Count())
	assert.Empty(t, edges.Points())
	for _, m := range grad.Magnitude {
		if m != 0 {
			t.Fatalf("uniform image should have zero gradient, got %v", m)
		}
	}
}

func TestExtractEdges_Dimensions(t *testing.T) {
	img := createSquareImage(37, 23)

	edges, grad := extract(t, img, 50, 100, Connectivity8)
	assert.Equal(t, 37, edges.Width)
	assert.Equal(t, 23, edges.Height)
	assert.Len(t, edges.Pix, 37*23)
	assert.Equal(t, 37, grad.Width)
	assert.Equal(t, 23, grad.Height)
}

func TestExtractEdges_VerticalStep(t *testing.T) {
	// Left half black, right half white
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 50 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}

	edges, grad := extract(t, img, 50, 150, Connectivity8)

	// Each interior row has exactly one edge pixel, next to x=50
	for y := 5; y < 95; y++ {
		var xs []int
		for x := 0; x < 100; x++ {
			if edges.At(x, y) {
				xs = append(xs, x)
			}
		}
		require.Len(t, xs, 1, "row %d should be thinned to one pixel", y)
		assert.InDelta(t, 49.5, float64(xs[0]), 1, "row %d", y)

		// Intensity grows to the right, so the gradient points along +x
		ux, uy, ok := grad.Unit(xs[0], y)
		require.True(t, ok)
		assert.InDelta(t, 1.0, ux, 1e-9)
		assert.InDelta(t, 0.0, uy, 1e-9)
	}
}

func TestExtractEdges_DiagonalGradientDirection(t *testing.T) {
	// Dark top-left triangle, white bottom-right: gradient points down-right
	img := image.NewRGBA(image.Rect(0, 0, 60, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			if x+y < 60 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}

	edges, grad := extract(t, img, 50, 150, Connectivity8)
	require.Greater(t, edges.Count(), 30)

	for _, p := range edges.Points() {
		if p.X < 10 || p.Y < 10 || p.X > 50 || p.Y > 50 {
			continue
		}
		ux, uy, ok := grad.Unit(p.X, p.Y)
		require.True(t, ok)
		assert.InDelta(t, math.Sqrt2/2, ux, 0.05)
		assert.InDelta(t, math.Sqrt2/2, uy, 0.05)
		assert.InDelta(t, 59.0, float64(p.X+p.Y), 2, "edge pixel %v off the diagonal", p)
	}
}

func TestExtractEdges_ThresholdsMonotonic(t *testing.T) {
	img := createSquareImage(80, 80)

	loose, _ := extract(t, img, 10, 20, Connectivity8)
	strict, _ := extract(t, img, 400, 800, Connectivity8)
	none, _ := extract(t, img, 5000, 5000, Connectivity8)

	assert.Greater(t, loose.Count(), 0)
	assert.GreaterOrEqual(t, loose.Count(), strict.Count())
	assert.Equal(t, 0, none.Count())
}

func TestHysteresis_WeakChainNeedsStrongSeed(t *testing.T) {
	// A row of weak pixels with one strong pixel at the start, and an
	// isolated row of weak pixels.
	width, height := 10, 5
	suppressed := make([]float64, width*height)
	for x := 1; x < 9; x++ {
		suppressed[1*width+x] = 60
		suppressed[3*width+x] = 60
	}
	suppressed[1*width+1] = 200

	edges := hysteresis(suppressed, width, height, 50, 100, Connectivity8)

	for x := 1; x < 9; x++ {
		assert.True(t, edges.At(x, 1), "chained weak pixel (%d,1) should be kept", x)
		assert.False(t, edges.At(x, 3), "isolated weak pixel (%d,3) should be dropped", x)
	}
}

func TestHysteresis_Connectivity(t *testing.T) {
	// Strong pixel with a weak pixel touching only diagonally
	width, height := 5, 5
	suppressed := make([]float64, width*height)
	suppressed[1*width+1] = 200
	suppressed[2*width+2] = 60

	eight := hysteresis(suppressed, width, height, 50, 100, Connectivity8)
	four := hysteresis(suppressed, width, height, 50, 100, Connectivity4)

	assert.True(t, eight.At(2, 2), "8-connectivity links diagonal neighbors")
	assert.False(t, four.At(2, 2), "4-connectivity ignores diagonal neighbors")
	assert.True(t, four.At(1, 1))
}

func TestHysteresis_LargeRegionTerminates(t *testing.T) {
	// Every pixel weak except one strong seed: the trace must cover the whole
	// raster without recursion.
	width, height := 400, 400
	suppressed := make([]float64, width*height)
	for i := range suppressed {
		suppressed[i] = 60
	}
	suppressed[0] = 200

	edges := hysteresis(suppressed, width, height, 50, 100, Connectivity8)
	assert.Equal(t, width*height, edges.Count())
}

func TestEdgeMap_Image(t *testing.T) {
	e := NewEdgeMap(3, 2)
	e.Pix[1] = true
	e.Pix[5] = true

	img := e.Image()
	assert.Equal(t, []uint8{0, 255, 0, 0, 0, 255}, img.Pix)
	assert.Equal(t, []image.Point{{X: 1, Y: 0}, {X: 2, Y: 1}}, e.Points())
	assert.False(t, e.At(-1, 0))
	assert.False(t, e.At(3, 0))
}
