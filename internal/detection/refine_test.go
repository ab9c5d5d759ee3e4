package detection

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/hough-circles/internal/imaging"
)

func TestFitCircle_ExactPoints(t *testing.T) {
	var xs, ys []float64
	for i := 0; i < 12; i++ {
		a := float64(i) * math.Pi / 6
		xs = append(xs, 3+5*math.Cos(a))
		ys = append(ys, -2+5*math.Sin(a))
	}

	cx, cy, r, ok := fitCircle(xs, ys)
	require.True(t, ok)
	assert.InDelta(t, 3, cx, 1e-9)
	assert.InDelta(t, -2, cy, 1e-9)
	assert.InDelta(t, 5, r, 1e-9)
}

func TestFitCircle_Collinear(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}
	ys := []float64{0, 0, 0, 0, 0, 0, 0, 0, 0}

	_, _, _, ok := fitCircle(xs, ys)
	assert.False(t, ok)
}

// ringEdges marks the pixels nearest to a circle outline.
func ringEdges(width, height int, cx, cy, r float64) *imaging.EdgeMap {
	edges := imaging.NewEdgeMap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if math.Abs(math.Hypot(float64(x)-cx, float64(y)-cy)-r) < 0.5 {
				edges.Pix[y*width+x] = true
			}
		}
	}
	return edges
}

func TestRefineCircles_MovesTowardsTrueCircle(t *testing.T) {
	edges := ringEdges(100, 100, 50.5, 49.5, 20)
	params := testParams(10, 30)

	voted := []Circle{{X: 50, Y: 50, Radius: 21, Votes: 42}}
	refined := RefineCircles(voted, edges, params)

	require.Len(t, refined, 1)
	assert.InDelta(t, 50.5, refined[0].X, 0.1)
	assert.InDelta(t, 49.5, refined[0].Y, 0.1)
	// The algebraic fit is slightly biased on a pixelated ring
	assert.InDelta(t, 20, refined[0].Radius, 0.25)
	assert.Equal(t, 42, refined[0].Votes)

	// The input slice is left untouched
	assert.Equal(t, 50.0, voted[0].X)
}

func TestRefineCircles_KeepsVotedCircleWhenFitIsRejected(t *testing.T) {
	params := testParams(10, 30)

	// Not enough supporting edge pixels
	sparse := imaging.NewEdgeMap(100, 100)
	sparse.Pix[50*100+70] = true
	c := Circle{X: 50, Y: 50, Radius: 20, Votes: 10}
	assert.Equal(t, []Circle{c}, RefineCircles([]Circle{c}, sparse, params))

	// A fit outside the radius range is rejected
	edges := ringEdges(100, 100, 50, 50, 9)
	small := Circle{X: 50, Y: 50, Radius: 10, Votes: 10}
	assert.Equal(t, []Circle{small}, RefineCircles([]Circle{small}, edges, params))

	// A fit that moves too far is rejected
	edges = ringEdges(100, 100, 54, 50, 20)
	far := Circle{X: 50, Y: 50, Radius: 20, Votes: 10}
	refined := RefineCircles([]Circle{far}, edges, params)
	assert.Equal(t, far, refined[0])
}

func TestRefineCircles_Empty(t *testing.T) {
	assert.Empty(t, RefineCircles(nil, imaging.NewEdgeMap(5, 5), DefaultParams()))
	assert.Empty(t, RefineCircles([]Circle{}, nil, DefaultParams()))
}

func TestSupportPoints_Band(t *testing.T) {
	params := testParams(10, 30)
	band := float64(params.RadiusStep) + refineBandSlack
	c := Circle{X: 50, Y: 50, Radius: 20}

	points := []image.Point{
		{X: 73, Y: 50}, // 3 outside, on the band edge
		{X: 74, Y: 50}, // 4 outside
		{X: 50, Y: 33}, // 3 inside, on the band edge
		{X: 50, Y: 34}, // 4 inside
		{X: 30, Y: 50}, // on the circle
	}
	xs, ys := supportPoints(points, c, band)

	assert.Equal(t, []float64{23, 0, -20}, xs)
	assert.Equal(t, []float64{0, -17, 0}, ys)
}
