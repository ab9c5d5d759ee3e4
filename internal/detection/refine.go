package detection

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/hough-circles/internal/imaging"
)

// minRefinePoints is the smallest edge support accepted for a circle fit.
const minRefinePoints = 8

// refineBandSlack widens the support band beyond one radius step. Edges of a
// thick or blurred outline sit up to about two pixels off the voted radius.
const refineBandSlack = 2

// RefineCircles improves voted circles to sub-pixel precision.
//
// For each circle, the edge pixels within radiusStep+2 pixels of its
// circumference are fitted with an algebraic least-squares circle
// (x² + y² + Dx + Ey + F = 0) solved by QR decomposition. The fitted circle
// replaces the voted one only when it is finite, supported by enough edge
// pixels, stays inside the image and the radius range, and moves by no more
// than radiusStep+1 pixels. Otherwise the voted circle is kept as is.
//
// Circles are expected in raster coordinates. Votes are never changed and the
// order of the slice is preserved.
func RefineCircles(circles []Circle, edges *imaging.EdgeMap, params DetectionParams) []Circle {
	if len(circles) == 0 || edges == nil {
		return circles
	}
	points := edges.Points()
	band := float64(params.RadiusStep) + refineBandSlack
	maxShift := float64(params.RadiusStep) + 1

	out := make([]Circle, len(circles))
	for i, c := range circles {
		out[i] = c

		xs, ys := supportPoints(points, c, band)
		if len(xs) < minRefinePoints {
			continue
		}

		cx, cy, r, ok := fitCircle(xs, ys)
		if !ok {
			continue
		}
		fitted := Circle{X: c.X + cx, Y: c.Y + cy, Radius: r, Votes: c.Votes}
		if math.Hypot(cx, cy) > maxShift || math.Abs(r-c.Radius) > maxShift {
			continue
		}
		if fitted.X < 0 || fitted.Y < 0 || fitted.X > float64(edges.Width-1) || fitted.Y > float64(edges.Height-1) {
			continue
		}
		if fitted.Radius < float64(params.RadiusMin) || fitted.Radius > float64(params.RadiusMax) {
			continue
		}
		out[i] = fitted
	}
	return out
}

// supportPoints returns the points within band pixels of the circumference of
// c, relative to its center to keep the fit well conditioned.
func supportPoints(points []image.Point, c Circle, band float64) (xs, ys []float64) {
	for _, p := range points {
		dx, dy := float64(p.X)-c.X, float64(p.Y)-c.Y
		if math.Abs(math.Hypot(dx, dy)-c.Radius) <= band {
			xs = append(xs, dx)
			ys = append(ys, dy)
		}
	}
	return xs, ys
}

// fitCircle solves the Kåsa circle fit for the given points.
func fitCircle(xs, ys []float64) (cx, cy, r float64, ok bool) {
	n := len(xs)
	A := mat.NewDense(n, 3, nil)
	B := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x, y := xs[i], ys[i]
		A.Set(i, 0, x)
		A.Set(i, 1, y)
		A.Set(i, 2, 1)
		B.SetVec(i, -(x*x + y*y))
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return 0, 0, 0, false
	}

	d, e, f := params.AtVec(0), params.AtVec(1), params.AtVec(2)
	cx, cy = -d/2, -e/2
	r2 := cx*cx + cy*cy - f
	if r2 <= 0 || math.IsNaN(r2) || math.IsInf(r2, 0) {
		return 0, 0, 0, false
	}
	r = math.Sqrt(r2)
	if math.IsNaN(cx) || math.IsNaN(cy) {
		return 0, 0, 0, false
	}
	return cx, cy, r, true
}
