package detection

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cell struct{ k, y, x, votes int }

// newTestAccumulator builds an accumulator with hand-placed vote counts.
func newTestAccumulator(mode AccumulatorMode, width, height, rMin, rMax, rStep int, cells ...cell) *Accumulator {
	acc := newAccumulator(width, height, rMin, rMax, rStep)
	acc.mode = mode
	if mode == AccumulatorSparse {
		acc.sparse = make(map[int]int32)
		for _, c := range cells {
			acc.sparse[acc.index(c.k, c.y, c.x)] = int32(c.votes)
		}
		return acc
	}
	acc.dense = make([]int32, acc.Cells())
	for _, c := range cells {
		acc.dense[acc.index(c.k, c.y, c.x)] = int32(c.votes)
	}
	return acc
}

var peakCells = []cell{
	{k: 0, y: 10, x: 10, votes: 50},
	{k: 1, y: 11, x: 10, votes: 50},
	{k: 0, y: 40, x: 40, votes: 30},
	{k: 2, y: 40, x: 44, votes: 20},
	{k: 0, y: 0, x: 0, votes: 5},
}

func TestExtractPeaks_OrderingAndSuppression(t *testing.T) {
	for _, mode := range []AccumulatorMode{AccumulatorDense, AccumulatorSparse} {
		t.Run(mode.String(), func(t *testing.T) {
			acc := newTestAccumulator(mode, 60, 60, 10, 12, 1, peakCells...)

			got, err := ExtractPeaks(acc, 10, 5, 2)
			require.NoError(t, err)

			// The tie at 50 votes goes to the smaller radius; the second
			// cell is within 5 pixels and suppressed, as is (44, 40).
			want := []Circle{
				{X: 10, Y: 10, Radius: 10, Votes: 50},
				{X: 40, Y: 40, Radius: 10, Votes: 30},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("peaks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractPeaks_NoSuppression(t *testing.T) {
	acc := newTestAccumulator(AccumulatorDense, 60, 60, 10, 12, 1, peakCells...)

	got, err := ExtractPeaks(acc, 10, 0, 1)
	require.NoError(t, err)

	want := []Circle{
		{X: 10, Y: 10, Radius: 10, Votes: 50},
		{X: 10, Y: 11, Radius: 11, Votes: 50},
		{X: 40, Y: 40, Radius: 10, Votes: 30},
		{X: 44, Y: 40, Radius: 12, Votes: 20},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("peaks mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractPeaks_TieBreakByPosition(t *testing.T) {
	acc := newTestAccumulator(AccumulatorSparse, 50, 50, 5, 5, 1,
		cell{k: 0, y: 30, x: 5, votes: 9},
		cell{k: 0, y: 10, x: 40, votes: 9},
		cell{k: 0, y: 10, x: 20, votes: 9},
	)

	got, err := ExtractPeaks(acc, 9, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Circle{X: 20, Y: 10, Radius: 5, Votes: 9}, got[0])
	assert.Equal(t, Circle{X: 40, Y: 10, Radius: 5, Votes: 9}, got[1])
	assert.Equal(t, Circle{X: 5, Y: 30, Radius: 5, Votes: 9}, got[2])
}

func TestExtractPeaks_DistanceIsStrict(t *testing.T) {
	acc := newTestAccumulator(AccumulatorDense, 30, 30, 3, 3, 1,
		cell{k: 0, y: 5, x: 5, votes: 10},
		cell{k: 0, y: 5, x: 10, votes: 8},
	)

	// Exactly minCenterDistance apart: both are kept
	got, err := ExtractPeaks(acc, 1, 5, 1)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = ExtractPeaks(acc, 1, 5.01, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestExtractPeaks_SuppressionAcrossBuckets(t *testing.T) {
	// Accepted centers in neighboring grid buckets must still suppress.
	acc := newTestAccumulator(AccumulatorDense, 100, 100, 3, 3, 1,
		cell{k: 0, y: 19, x: 19, votes: 10},
		cell{k: 0, y: 21, x: 21, votes: 9},
		cell{k: 0, y: 0, x: 39, votes: 8},
		cell{k: 0, y: 0, x: 41, votes: 7},
	)

	got, err := ExtractPeaks(acc, 1, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, []Circle{
		{X: 19, Y: 19, Radius: 3, Votes: 10},
		{X: 39, Y: 0, Radius: 3, Votes: 8},
	}, got)
}

func TestExtractPeaks_Empty(t *testing.T) {
	acc := newTestAccumulator(AccumulatorDense, 10, 10, 1, 2, 1, cell{k: 1, y: 3, x: 3, votes: 4})

	got, err := ExtractPeaks(acc, 5, 1, 1)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtractPeaks_Monotonic(t *testing.T) {
	acc := newTestAccumulator(AccumulatorDense, 60, 60, 10, 12, 1, peakCells...)

	prev := len(peakCells) + 1
	for threshold := 1; threshold <= 60; threshold++ {
		got, err := ExtractPeaks(acc, threshold, 5, 1)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), prev, "threshold %d", threshold)
		for _, c := range got {
			assert.GreaterOrEqual(t, c.Votes, threshold)
		}
		prev = len(got)
	}
}

func TestExtractPeaks_InvalidArguments(t *testing.T) {
	acc := newTestAccumulator(AccumulatorDense, 10, 10, 1, 2, 1)

	_, err := ExtractPeaks(nil, 1, 1, 1)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = ExtractPeaks(acc, 0, 1, 1)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = ExtractPeaks(acc, 1, -3, 1)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
