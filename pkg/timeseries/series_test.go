package timeseries_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/shorefilter/pkg/timeseries"
)

func days(offsets ...int) []time.Time {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, len(offsets))

	for i, d := range offsets {
		out[i] = base.AddDate(0, 0, d)
	}

	return out
}

func TestNew_LengthMismatch(t *testing.T) {
	t.Parallel()

	_, err := timeseries.New("t1", days(0, 1), []float64{1})
	require.ErrorIs(t, err, timeseries.ErrLengthMismatch)
}

func TestNew_CopiesInput(t *testing.T) {
	t.Parallel()

	values := []float64{1, 2, 3}

	s, err := timeseries.New("t1", days(0, 1, 2), values)
	require.NoError(t, err)

	values[0] = 99
	assert.InDelta(t, 1.0, s.Values[0], 0)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dates   []time.Time
		wantErr error
	}{
		{name: "increasing", dates: days(0, 3, 10)},
		{name: "duplicate", dates: days(0, 0, 2), wantErr: timeseries.ErrNotIncreasing},
		{name: "decreasing", dates: days(5, 2, 9), wantErr: timeseries.ErrNotIncreasing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := timeseries.New("t1", tt.dates, []float64{1, 2, 3})
			require.NoError(t, err)

			err = s.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestWithMissingAndDropMissing(t *testing.T) {
	t.Parallel()

	s, err := timeseries.New("t1", days(0, 1, 2, 3), []float64{10, 11, 12, 13})
	require.NoError(t, err)

	marked := s.WithMissing([]int{1, 3, 42})
	assert.Equal(t, 2, marked.MissingCount())
	assert.Equal(t, 0, s.MissingCount(), "receiver must not change")

	dropped := marked.DropMissing()
	assert.Equal(t, []float64{10, 12}, dropped.Values)
	assert.Equal(t, days(0, 2), dropped.Timestamps)
	assert.Equal(t, "t1", dropped.Name)
}

func TestKeep_MaskLength(t *testing.T) {
	t.Parallel()

	s, err := timeseries.New("t1", days(0, 1), []float64{1, 2})
	require.NoError(t, err)

	_, err = s.Keep([]bool{true})
	require.ErrorIs(t, err, timeseries.ErrMaskLength)
}

func TestSpan(t *testing.T) {
	t.Parallel()

	s, err := timeseries.New("t1", days(0, 4, 30), []float64{1, math.NaN(), 2})
	require.NoError(t, err)

	assert.Equal(t, 30*24*time.Hour, s.Span())

	single, err := timeseries.New("t1", days(0), []float64{1})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), single.Span())
}
