package detection

import (
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Circle is a detected circle.
//
// Center and radius are in the coordinate space of the input image. Votes is
// the accumulator count of the cell the circle was extracted from; it is never
// changed by refinement.
type Circle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Votes  int     `json:"votes"`
}

// candidate is an accumulator cell at or above the vote threshold.
type candidate struct {
	k, x, y int
	votes   int
}

// ExtractPeaks turns accumulator cells into a deduplicated list of circles.
//
// Parameters:
//   - acc: Filled accumulator (see BuildAccumulator).
//   - threshold: Minimum vote count for a cell to become a candidate. Must be > 0.
//   - minCenterDistance: Deduplication radius in pixels. Must be >= 0.
//   - workers: Goroutines used for the candidate scan; <= 0 means one per CPU.
//
// Returns circles in raster coordinates (origin at 0, 0), ordered by
// descending votes. An accumulator without any cell at or above threshold
// yields an empty, non-nil slice.
//
// # Algorithm
//
//  1. Candidate generation: every cell with votes >= threshold.
//  2. Ordering: votes descending, then radius ascending, then y, then x, so
//     the output is fully deterministic.
//  3. Non-maximum suppression: walk the candidates in order and accept each
//     one unless its center is closer than minCenterDistance to the center of
//     a circle accepted before it. Rejected candidates are dropped.
//
// Because the threshold only ever cuts the ordered candidates to a prefix,
// raising it can never increase the number of circles returned.
func ExtractPeaks(acc *Accumulator, threshold int, minCenterDistance float64, workers int) ([]Circle, error) {
	if acc == nil {
		return nil, fmt.Errorf("%w: accumulator is nil", ErrInvalidInput)
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("%w: accumulator threshold must be > 0, got %d", ErrInvalidConfig, threshold)
	}
	if err := validateMinDistance(minCenterDistance); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	candidates := collectCandidates(acc, threshold, workers)
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.votes != b.votes {
			return a.votes > b.votes
		}
		if a.k != b.k {
			return a.k < b.k
		}
		if a.y != b.y {
			return a.y < b.y
		}
		return a.x < b.x
	})

	return suppress(acc, candidates, minCenterDistance), nil
}

func collectCandidates(acc *Accumulator, threshold, workers int) []candidate {
	if acc.dense == nil {
		var out []candidate
		acc.Each(func(k, y, x, votes int) {
			if votes >= threshold {
				out = append(out, candidate{k: k, x: x, y: y, votes: votes})
			}
		})
		return out
	}

	plane := acc.height * acc.width
	perSlice := make([][]candidate, len(acc.radii))
	var g errgroup.Group
	g.SetLimit(workers)
	for k := range acc.radii {
		k := k
		g.Go(func() error {
			var found []candidate
			for i, v := range acc.dense[k*plane : (k+1)*plane] {
				if int(v) >= threshold {
					found = append(found, candidate{k: k, x: i % acc.width, y: i / acc.width, votes: int(v)})
				}
			}
			perSlice[k] = found
			return nil
		})
	}
	_ = g.Wait()

	var out []candidate
	for _, found := range perSlice {
		out = append(out, found...)
	}
	return out
}

// suppress runs the greedy center-distance NMS over sorted candidates.
// Accepted centers are bucketed on a grid of minCenterDistance cells so each
// decision only looks at the 3x3 neighboring buckets.
func suppress(acc *Accumulator, sorted []candidate, minCenterDistance float64) []Circle {
	circles := make([]Circle, 0)
	if minCenterDistance == 0 {
		for _, c := range sorted {
			circles = append(circles, c.circle(acc))
		}
		return circles
	}

	cell := minCenterDistance
	limit := minCenterDistance * minCenterDistance
	buckets := make(map[[2]int][]int)
	key := func(x, y int) [2]int {
		return [2]int{int(math.Floor(float64(x) / cell)), int(math.Floor(float64(y) / cell))}
	}

	for _, c := range sorted {
		b := key(c.x, c.y)
		duplicate := false
	search:
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				for _, idx := range buckets[[2]int{b[0] + dx, b[1] + dy}] {
					ax, ay := circles[idx].X-float64(c.x), circles[idx].Y-float64(c.y)
					if ax*ax+ay*ay < limit {
						duplicate = true
						break search
					}
				}
			}
		}
		if duplicate {
			continue
		}
		buckets[b] = append(buckets[b], len(circles))
		circles = append(circles, c.circle(acc))
	}
	return circles
}

func (c candidate) circle(acc *Accumulator) Circle {
	return Circle{
		X:      float64(c.x),
		Y:      float64(c.y),
		Radius: float64(acc.radii[c.k]),
		Votes:  c.votes,
	}
}
