package reference

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/hough-circles/internal/detection"
)

func TestCompare_PairsWithinTolerance(t *testing.T) {
	ours := []detection.Circle{
		{X: 100, Y: 100, Radius: 30, Votes: 90},
		{X: 250, Y: 250, Radius: 50, Votes: 80},
		{X: 10, Y: 10, Radius: 12, Votes: 31},
	}
	theirs := []detection.Circle{
		{X: 251, Y: 250, Radius: 49},
		{X: 100, Y: 102, Radius: 31},
		{X: 400, Y: 150, Radius: 25},
	}

	report, err := Compare(ours, theirs, DefaultTolerance)
	require.NoError(t, err)

	require.Len(t, report.Matched, 2)
	assert.Equal(t, ours[1], report.Matched[0].Ours)
	assert.Equal(t, theirs[0], report.Matched[0].Theirs)
	assert.InDelta(t, 1, report.Matched[0].CenterDistance, 1e-9)
	assert.InDelta(t, 1, report.Matched[0].RadiusDelta, 1e-9)
	assert.Equal(t, ours[0], report.Matched[1].Ours)
	assert.InDelta(t, -1, report.Matched[1].RadiusDelta, 1e-9)

	assert.Equal(t, []detection.Circle{ours[2]}, report.OnlyOurs)
	assert.Equal(t, []detection.Circle{theirs[2]}, report.OnlyTheirs)

	assert.InDelta(t, 1.5, report.MeanCenterError, 1e-9)
	assert.InDelta(t, 1, report.MeanRadiusError, 1e-9)
	assert.InDelta(t, 2.0/3.0, report.Agreement, 1e-9)
}

func TestCompare_OneToOne(t *testing.T) {
	// Two of ours compete for one of theirs: the closer one wins.
	ours := []detection.Circle{
		{X: 50, Y: 50, Radius: 20},
		{X: 51, Y: 50, Radius: 20},
	}
	theirs := []detection.Circle{{X: 51, Y: 50, Radius: 20}}

	report, err := Compare(ours, theirs, DefaultTolerance)
	require.NoError(t, err)

	require.Len(t, report.Matched, 1)
	assert.Equal(t, ours[1], report.Matched[0].Ours)
	assert.Equal(t, []detection.Circle{ours[0]}, report.OnlyOurs)
	assert.Empty(t, report.OnlyTheirs)
	assert.InDelta(t, 0.5, report.Agreement, 1e-9)
}

func TestCompare_Empty(t *testing.T) {
	report, err := Compare(nil, nil, DefaultTolerance)
	require.NoError(t, err)

	want := &Report{
		Matched:    []Match{},
		OnlyOurs:   []detection.Circle{},
		OnlyTheirs: []detection.Circle{},
		Agreement:  1,
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestCompare_InvalidTolerance(t *testing.T) {
	for _, tol := range []Tolerance{{Center: -1}, {Radius: -0.5}, {Center: math.NaN()}} {
		_, err := Compare(nil, nil, tol)
		assert.True(t, errors.Is(err, detection.ErrInvalidConfig), "tolerance %+v", tol)
	}
}

func TestFromDetection(t *testing.T) {
	p := detection.DefaultParams()
	p.MinCenterDistance = 0

	got := FromDetection(p)
	assert.Equal(t, Params{
		DP:                   1,
		MinDist:              1,
		CannyHigh:            100,
		AccumulatorThreshold: 30,
		MinRadius:            10,
		MaxRadius:            100,
	}, got)
}
