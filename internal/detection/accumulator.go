package detection

import (
	"fmt"
	"image"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/hough-circles/internal/imaging"
)

// AccumulatorMode selects the storage used for vote counts.
type AccumulatorMode int

const (
	// AccumulatorAuto uses a dense array when it fits within the dense cell
	// limit and a sparse map otherwise.
	AccumulatorAuto AccumulatorMode = iota

	// AccumulatorDense stores every (radius, y, x) cell in one flat array.
	AccumulatorDense

	// AccumulatorSparse stores only cells that received votes, keyed by their
	// linear index.
	AccumulatorSparse
)

// String returns the mode name used in logs and JSON output.
func (m AccumulatorMode) String() string {
	switch m {
	case AccumulatorDense:
		return "dense"
	case AccumulatorSparse:
		return "sparse"
	default:
		return "auto"
	}
}

// ParseAccumulatorMode converts "auto", "dense" or "sparse" to a mode.
// The empty string selects AccumulatorAuto.
func ParseAccumulatorMode(s string) (AccumulatorMode, error) {
	switch s {
	case "", "auto":
		return AccumulatorAuto, nil
	case "dense":
		return AccumulatorDense, nil
	case "sparse":
		return AccumulatorSparse, nil
	}
	return AccumulatorAuto, fmt.Errorf("%w: unknown accumulator mode %q", ErrInvalidConfig, s)
}

// DefaultDenseCellLimit bounds the dense accumulator to 32M cells (128 MiB of
// int32 counts) in auto mode.
const DefaultDenseCellLimit = 1 << 25

// BuildOptions tunes how the accumulator is stored and filled. The zero value
// selects auto mode, the default cell limit and one worker per CPU.
type BuildOptions struct {
	Mode           AccumulatorMode
	DenseCellLimit int
	Workers        int
}

func (o BuildOptions) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Accumulator holds circle-center votes indexed by (radius index, y, x).
//
// Counts are never negative and are only incremented while the accumulator
// is being built. Once BuildAccumulator returns, the accumulator is read-only
// and safe for concurrent readers.
type Accumulator struct {
	width      int
	height     int
	radiusMin  int
	radiusStep int
	radii      []int
	mode       AccumulatorMode

	dense  []int32
	sparse map[int]int32
}

func newAccumulator(width, height, radiusMin, radiusMax, radiusStep int) *Accumulator {
	var radii []int
	for r := radiusMin; r <= radiusMax; r += radiusStep {
		radii = append(radii, r)
	}
	return &Accumulator{
		width:      width,
		height:     height,
		radiusMin:  radiusMin,
		radiusStep: radiusStep,
		radii:      radii,
	}
}

// Width returns the x extent of the accumulator (the image width).
func (a *Accumulator) Width() int { return a.width }

// Height returns the y extent of the accumulator (the image height).
func (a *Accumulator) Height() int { return a.height }

// Mode reports the storage actually used: AccumulatorDense or AccumulatorSparse.
func (a *Accumulator) Mode() AccumulatorMode { return a.mode }

// NumRadii returns the size of the radius axis.
func (a *Accumulator) NumRadii() int { return len(a.radii) }

// Radius returns the radius in pixels represented by radius index k.
func (a *Accumulator) Radius(k int) int { return a.radii[k] }

// Radii returns a copy of the searched radii in increasing order.
func (a *Accumulator) Radii() []int {
	out := make([]int, len(a.radii))
	copy(out, a.radii)
	return out
}

// RadiusIndex maps a radius to its bucket, round((r - RadiusMin) / RadiusStep).
// ok is false when the bucket lies outside the radius axis.
func (a *Accumulator) RadiusIndex(r float64) (k int, ok bool) {
	k = int(math.Round((r - float64(a.radiusMin)) / float64(a.radiusStep)))
	return k, k >= 0 && k < len(a.radii)
}

// Cells returns the number of addressable cells (radii × height × width).
func (a *Accumulator) Cells() int {
	return len(a.radii) * a.height * a.width
}

func (a *Accumulator) index(k, y, x int) int {
	return (k*a.height+y)*a.width + x
}

// At returns the vote count of cell (k, y, x). Out-of-range cells hold zero.
func (a *Accumulator) At(k, y, x int) int {
	if k < 0 || k >= len(a.radii) || y < 0 || y >= a.height || x < 0 || x >= a.width {
		return 0
	}
	i := a.index(k, y, x)
	if a.dense != nil {
		return int(a.dense[i])
	}
	return int(a.sparse[i])
}

// Each calls fn for every cell holding at least one vote, in (k, y, x) order.
func (a *Accumulator) Each(fn func(k, y, x, votes int)) {
	plane := a.height * a.width
	if a.dense != nil {
		for i, v := range a.dense {
			if v > 0 {
				fn(i/plane, (i%plane)/a.width, i%a.width, int(v))
			}
		}
		return
	}
	for _, i := range a.sparseKeys() {
		fn(i/plane, (i%plane)/a.width, i%a.width, int(a.sparse[i]))
	}
}

func (a *Accumulator) sparseKeys() []int {
	keys := make([]int, 0, len(a.sparse))
	for i := range a.sparse {
		keys = append(keys, i)
	}
	sort.Ints(keys)
	return keys
}

// Total returns the sum of all votes.
func (a *Accumulator) Total() int64 {
	var total int64
	a.Each(func(_, _, _, votes int) { total += int64(votes) })
	return total
}

// Max returns the largest vote count in the accumulator.
func (a *Accumulator) Max() int {
	best := 0
	a.Each(func(_, _, _, votes int) {
		if votes > best {
			best = votes
		}
	})
	return best
}

// Slice returns a copy of the height × width vote plane for radius index k.
func (a *Accumulator) Slice(k int) []int {
	out := make([]int, a.height*a.width)
	if k < 0 || k >= len(a.radii) {
		return out
	}
	plane := a.height * a.width
	if a.dense != nil {
		for i, v := range a.dense[k*plane : (k+1)*plane] {
			out[i] = int(v)
		}
		return out
	}
	for i, v := range a.sparse {
		if i/plane == k {
			out[i%plane] = int(v)
		}
	}
	return out
}

// SliceMax returns the largest vote count for each radius index.
func (a *Accumulator) SliceMax() []int {
	out := make([]int, len(a.radii))
	a.Each(func(k, _, _, votes int) {
		if votes > out[k] {
			out[k] = votes
		}
	})
	return out
}

// Projection sums the votes over the radius axis, giving a height × width
// plane of center evidence regardless of radius.
func (a *Accumulator) Projection() []int {
	out := make([]int, a.height*a.width)
	a.Each(func(_, y, x, votes int) {
		out[y*a.width+x] += votes
	})
	return out
}

// ProjectionImage renders Projection as an 8-bit grayscale image normalized
// so that the strongest center is white.
func (a *Accumulator) ProjectionImage() *image.Gray {
	proj := a.Projection()
	out := image.NewGray(image.Rect(0, 0, a.width, a.height))
	peak := 0
	for _, v := range proj {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return out
	}
	for i, v := range proj {
		out.Pix[i] = uint8(math.Round(float64(v) * 255 / float64(peak)))
	}
	return out
}

// BuildAccumulator casts Hough gradient votes for circle centers.
//
// Parameters:
//   - edges: Binary edge map (see imaging.ExtractEdges).
//   - grad: Gradient field with the same dimensions as edges.
//   - radiusMin, radiusMax, radiusStep: Searched radii are
//     radiusMin, radiusMin+radiusStep, ... up to radiusMax inclusive.
//   - opts: Storage and parallelism settings.
//
// # Algorithm (Hough gradient method)
//
// The center of a circle through an edge pixel lies on the line through the
// pixel along its gradient. For each edge pixel and each radius r, the two
// points at distance r on either side of the pixel along the unit gradient
// are rounded to the nearest pixel and, if inside the image, the cell
// (r, cy, cx) gains one vote. Out-of-bounds candidates are skipped.
//
// This needs two votes per edge pixel and radius instead of one per point of
// a full circle, which is what makes the method cheap.
//
// # Parallelism
//
// Dense storage is partitioned by radius slice: each worker owns whole
// slices, so no cell is ever shared. Sparse storage is partitioned by edge
// pixel into per-worker partial maps merged by summation. Either way the
// counts do not depend on the number of workers.
func BuildAccumulator(edges *imaging.EdgeMap, grad *imaging.GradientField, radiusMin, radiusMax, radiusStep int, opts BuildOptions) (*Accumulator, error) {
	if edges == nil || grad == nil {
		return nil, fmt.Errorf("%w: edge map and gradient field are required", ErrInvalidInput)
	}
	if edges.Width != grad.Width || edges.Height != grad.Height {
		return nil, fmt.Errorf("%w: edge map is %dx%d but gradient field is %dx%d",
			ErrInvalidInput, edges.Width, edges.Height, grad.Width, grad.Height)
	}
	if err := validateRadii(radiusMin, radiusMax, radiusStep); err != nil {
		return nil, err
	}

	acc := newAccumulator(edges.Width, edges.Height, radiusMin, radiusMax, radiusStep)
	acc.mode = opts.Mode
	if acc.mode == AccumulatorAuto {
		limit := opts.DenseCellLimit
		if limit <= 0 {
			limit = DefaultDenseCellLimit
		}
		acc.mode = AccumulatorDense
		if acc.Cells() > limit {
			acc.mode = AccumulatorSparse
		}
	}

	votes := gradientVotes(edges, grad)

	if acc.mode == AccumulatorDense {
		acc.dense = make([]int32, acc.Cells())
		acc.fillDense(votes, opts.workers())
	} else {
		acc.sparse = acc.fillSparse(votes, opts.workers())
	}
	return acc, nil
}

// voter is an edge pixel together with its unit gradient.
type voter struct {
	x, y   float64
	ux, uy float64
}

func gradientVotes(edges *imaging.EdgeMap, grad *imaging.GradientField) []voter {
	points := edges.Points()
	voters := make([]voter, 0, len(points))
	for _, p := range points {
		ux, uy, ok := grad.Unit(p.X, p.Y)
		if !ok {
			continue
		}
		voters = append(voters, voter{x: float64(p.X), y: float64(p.Y), ux: ux, uy: uy})
	}
	return voters
}

// centers returns the two candidate centers of v at radius r and whether each
// lies inside a width × height image.
func (v voter) centers(r float64, width, height int) (c [2]image.Point, in [2]bool) {
	for s, sign := range [2]float64{1, -1} {
		cx := int(math.Round(v.x + sign*r*v.ux))
		cy := int(math.Round(v.y + sign*r*v.uy))
		c[s] = image.Point{X: cx, Y: cy}
		in[s] = cx >= 0 && cy >= 0 && cx < width && cy < height
	}
	return c, in
}

func (a *Accumulator) fillDense(voters []voter, workers int) {
	plane := a.height * a.width
	var g errgroup.Group
	g.SetLimit(workers)
	for k, r := range a.radii {
		k, r := k, r
		g.Go(func() error {
			slice := a.dense[k*plane : (k+1)*plane]
			for _, v := range voters {
				c, in := v.centers(float64(r), a.width, a.height)
				for s := range c {
					if in[s] {
						slice[c[s].Y*a.width+c[s].X]++
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Accumulator) fillSparse(voters []voter, workers int) map[int]int32 {
	if workers > len(voters) {
		workers = len(voters)
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (len(voters) + workers - 1) / workers
	partials := make([]map[int]int32, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := min(w*chunk, len(voters))
		end := min(start+chunk, len(voters))
		w := w
		g.Go(func() error {
			part := make(map[int]int32)
			for _, v := range voters[start:end] {
				for k, r := range a.radii {
					c, in := v.centers(float64(r), a.width, a.height)
					for s := range c {
						if in[s] {
							part[a.index(k, c[s].Y, c[s].X)]++
						}
					}
				}
			}
			partials[w] = part
			return nil
		})
	}
	_ = g.Wait()

	merged := partials[0]
	if merged == nil {
		merged = make(map[int]int32)
	}
	for _, part := range partials[1:] {
		for i, v := range part {
			merged[i] += v
		}
	}
	return merged
}
