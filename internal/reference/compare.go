package reference

import (
	"fmt"
	"math"
	"sort"

	"github.com/ironsheep/hough-circles/internal/detection"
)

// Tolerance bounds how far two circles may differ and still be paired.
type Tolerance struct {
	Center float64 `json:"center"`
	Radius float64 `json:"radius"`
}

// DefaultTolerance pairs circles within 3 pixels in center and radius.
var DefaultTolerance = Tolerance{Center: 3, Radius: 3}

// Match is a pair of circles judged to be the same circle.
type Match struct {
	Ours           detection.Circle `json:"ours"`
	Theirs         detection.Circle `json:"theirs"`
	CenterDistance float64          `json:"center_distance"`
	RadiusDelta    float64          `json:"radius_delta"`
}

// Report is the outcome of Compare.
type Report struct {
	Matched    []Match            `json:"matched"`
	OnlyOurs   []detection.Circle `json:"only_ours"`
	OnlyTheirs []detection.Circle `json:"only_theirs"`

	// MeanCenterError and MeanRadiusError average over matched pairs.
	MeanCenterError float64 `json:"mean_center_error"`
	MeanRadiusError float64 `json:"mean_radius_error"`

	// Agreement is matched pairs over the size of the longer list, 1 when
	// both lists are empty.
	Agreement float64 `json:"agreement"`
}

// Compare pairs two circle lists one-to-one.
//
// Every pair within tolerance is a potential match. Pairs are taken greedily
// by increasing center distance, then radius difference, then list position,
// and a circle is used at most once. Unpaired circles keep their input order.
func Compare(ours, theirs []detection.Circle, tol Tolerance) (*Report, error) {
	if tol.Center < 0 || tol.Radius < 0 || math.IsNaN(tol.Center) || math.IsNaN(tol.Radius) {
		return nil, fmt.Errorf("%w: tolerance must be >= 0, got %+v", detection.ErrInvalidConfig, tol)
	}

	type pair struct {
		i, j int
		dist float64
		dr   float64
	}
	var pairs []pair
	for i, a := range ours {
		for j, b := range theirs {
			dist := math.Hypot(a.X-b.X, a.Y-b.Y)
			dr := math.Abs(a.Radius - b.Radius)
			if dist <= tol.Center && dr <= tol.Radius {
				pairs = append(pairs, pair{i: i, j: j, dist: dist, dr: dr})
			}
		}
	}
	sort.Slice(pairs, func(x, y int) bool {
		p, q := pairs[x], pairs[y]
		if p.dist != q.dist {
			return p.dist < q.dist
		}
		if p.dr != q.dr {
			return p.dr < q.dr
		}
		if p.i != q.i {
			return p.i < q.i
		}
		return p.j < q.j
	})

	usedOurs := make([]bool, len(ours))
	usedTheirs := make([]bool, len(theirs))
	report := &Report{
		Matched:    make([]Match, 0),
		OnlyOurs:   make([]detection.Circle, 0),
		OnlyTheirs: make([]detection.Circle, 0),
	}
	for _, p := range pairs {
		if usedOurs[p.i] || usedTheirs[p.j] {
			continue
		}
		usedOurs[p.i], usedTheirs[p.j] = true, true
		report.Matched = append(report.Matched, Match{
			Ours:           ours[p.i],
			Theirs:         theirs[p.j],
			CenterDistance: p.dist,
			RadiusDelta:    ours[p.i].Radius - theirs[p.j].Radius,
		})
		report.MeanCenterError += p.dist
		report.MeanRadiusError += p.dr
	}

	for i, c := range ours {
		if !usedOurs[i] {
			report.OnlyOurs = append(report.OnlyOurs, c)
		}
	}
	for j, c := range theirs {
		if !usedTheirs[j] {
			report.OnlyTheirs = append(report.OnlyTheirs, c)
		}
	}

	if n := len(report.Matched); n > 0 {
		report.MeanCenterError /= float64(n)
		report.MeanRadiusError /= float64(n)
	}
	report.Agreement = 1
	if longest := max(len(ours), len(theirs)); longest > 0 {
		report.Agreement = float64(len(report.Matched)) / float64(longest)
	}
	return report, nil
}
