package filter_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/shorefilter/pkg/filter"
	"github.com/Sumatoshi-tech/shorefilter/pkg/timeseries"
)

var epoch = time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)

// dailySeries builds a series sampled every stepDays days.
func dailySeries(t *testing.T, stepDays int, values ...float64) *timeseries.Series {
	t.Helper()

	dates := make([]time.Time, len(values))
	for i := range dates {
		dates[i] = epoch.AddDate(0, 0, i*stepDays)
	}

	s, err := timeseries.New("transect", dates, values)
	require.NoError(t, err)

	return s
}

// spikySeries is a gently oscillating shoreline with two large spikes.
func spikySeries(t *testing.T) *timeseries.Series {
	t.Helper()

	values := make([]float64, 40)
	for i := range values {
		values[i] = 100 + 0.5*math.Sin(float64(i))
	}

	values[10] += 50
	values[25] -= 60

	return dailySeries(t, 7, values...)
}

func TestHampelCleaner_CleanSeriesConvergesInOneRound(t *testing.T) {
	t.Parallel()

	s := dailySeries(t, 1, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)

	c, err := filter.NewHampelCleaner(hampelConfig(5, 3))
	require.NoError(t, err)

	res, err := c.Clean(s)
	require.NoError(t, err)

	assert.Equal(t, filter.StateConverged, res.State)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Removed)
	assert.Equal(t, s.Values, res.Series.Values)
	assert.Len(t, res.LastBounds.Lower, s.Len()-4)
}

func TestHampelCleaner_RemovesSpikesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	s := spikySeries(t)
	cfg := hampelConfig(5, 3)

	c, err := filter.NewHampelCleaner(cfg)
	require.NoError(t, err)

	res, err := c.Clean(s)
	require.NoError(t, err)

	assert.Contains(t, res.Removed, s.Timestamps[10])
	assert.Contains(t, res.Removed, s.Timestamps[25])
	assert.Equal(t, s.Len(), res.Series.Len()+len(res.Removed))
	assert.GreaterOrEqual(t, res.Iterations, 1)
	require.Equal(t, filter.StateConverged, res.State)

	again, err := filter.HampelIndices(res.Series.Values, cfg)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestHampelCleaner_OutputIsSubsetOfInput(t *testing.T) {
	t.Parallel()

	s := spikySeries(t)

	c, err := filter.NewHampelCleaner(hampelConfig(5, 3))
	require.NoError(t, err)

	res, err := c.Clean(s)
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Series.Len(), s.Len())

	original := make(map[time.Time]float64, s.Len())
	for i, ts := range s.Timestamps {
		original[ts] = s.Values[i]
	}

	for i, ts := range res.Series.Timestamps {
		v, ok := original[ts]
		require.True(t, ok, "unexpected timestamp %s", ts)
		assert.InDelta(t, v, res.Series.Values[i], 0)
	}

	assert.NoError(t, res.Series.Validate())
}

func TestHampelCleaner_Truncated(t *testing.T) {
	t.Parallel()

	t.Run("too_short_to_start", func(t *testing.T) {
		t.Parallel()

		s := dailySeries(t, 1, 1, 2, math.NaN(), 4, 5)

		c, err := filter.NewHampelCleaner(hampelConfig(5, 3))
		require.NoError(t, err)

		res, err := c.Clean(s)
		require.NoError(t, err)
		assert.Equal(t, filter.StateTruncated, res.State)
		assert.Zero(t, res.Iterations)
		assert.Empty(t, res.Removed)
		assert.Zero(t, res.Series.MissingCount(), "missing rows are dropped on every path")
		assert.Equal(t, []float64{1, 2, 4, 5}, res.Series.Values)
	})

	t.Run("shrinks_below_window", func(t *testing.T) {
		t.Parallel()

		s := dailySeries(t, 1, 0, 0, 0, 0, 0, 0, 0)

		c, err := filter.NewHampelCleaner(hampelConfig(5, 3))
		require.NoError(t, err)

		res, err := c.Clean(s)
		require.NoError(t, err)
		assert.Equal(t, filter.StateTruncated, res.State)
		assert.Equal(t, 1, res.Iterations)
		assert.Equal(t, 4, res.Series.Len())
		assert.Len(t, res.Removed, 3)
	})
}

func TestHampelCleaner_IterationCap(t *testing.T) {
	t.Parallel()

	cfg := hampelConfig(5, 3)
	cfg.MaxIterations = 1

	c, err := filter.NewHampelCleaner(cfg)
	require.NoError(t, err)

	res, err := c.Clean(spikySeries(t))
	require.NoError(t, err)
	assert.Equal(t, filter.StateExhausted, res.State)
	assert.Equal(t, 1, res.Iterations)
	assert.NotEmpty(t, res.Removed)
}

func TestHampelCleaner_DropsMissingRows(t *testing.T) {
	t.Parallel()

	s := dailySeries(t, 1, 0, 1, math.NaN(), 3, 4, 5, math.NaN(), 7, 8, 9)

	c, err := filter.NewHampelCleaner(hampelConfig(3, 3))
	require.NoError(t, err)

	res, err := c.Clean(s)
	require.NoError(t, err)
	assert.Zero(t, res.Series.MissingCount())
	assert.Equal(t, 8, res.Series.Len()+len(res.Removed))
}

func TestHampelCleaner_InvalidInput(t *testing.T) {
	t.Parallel()

	c, err := filter.NewHampelCleaner(filter.DefaultConfig())
	require.NoError(t, err)

	_, err = c.Clean(nil)
	require.ErrorIs(t, err, filter.ErrInvalidInput)

	dates := []time.Time{epoch, epoch, epoch.AddDate(0, 0, 1)}
	s, err := timeseries.New("t", dates, []float64{1, 2, 3})
	require.NoError(t, err)

	_, err = c.Clean(s)
	require.ErrorIs(t, err, filter.ErrInvalidInput)
	require.ErrorIs(t, err, timeseries.ErrNotIncreasing)
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "running", filter.StateRunning.String())
	assert.Equal(t, "converged", filter.StateConverged.String())
	assert.Equal(t, "truncated", filter.StateTruncated.String())
	assert.Equal(t, "exhausted", filter.StateExhausted.String())
	assert.Equal(t, "state(9)", filter.State(9).String())
}
