// Package timeseries provides the date-indexed shoreline position series that
// flows through the filter pipeline, plus CSV ingestion and export.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Sumatoshi-tech/shorefilter/pkg/alg/stats"
)

// Sentinel errors for series construction and validation.
var (
	// ErrLengthMismatch indicates timestamps and values differ in length.
	ErrLengthMismatch = errors.New("timestamps and values must have the same length")
	// ErrNotIncreasing indicates timestamps are not strictly increasing.
	ErrNotIncreasing = errors.New("timestamps must be strictly increasing")
	// ErrMaskLength indicates a keep mask does not match the series length.
	ErrMaskLength = errors.New("mask length must match series length")
)

// Series is an ordered sequence of (timestamp, value) samples for one transect.
// Missing values are NaN. Methods never modify the receiver; derived series
// own fresh slices.
type Series struct {
	Name       string
	Timestamps []time.Time
	Values     []float64
}

// New creates a series from parallel timestamp and value slices.
// The slices are copied.
func New(name string, timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, fmt.Errorf("%w: %d timestamps, %d values", ErrLengthMismatch, len(timestamps), len(values))
	}

	s := &Series{
		Name:       name,
		Timestamps: make([]time.Time, len(timestamps)),
		Values:     make([]float64, len(values)),
	}

	copy(s.Timestamps, timestamps)
	copy(s.Values, values)

	return s, nil
}

// Len returns the number of samples.
func (s *Series) Len() int {
	return len(s.Values)
}

// Clone returns a deep copy of the series.
func (s *Series) Clone() *Series {
	c, _ := New(s.Name, s.Timestamps, s.Values) //nolint:errcheck // lengths already consistent

	return c
}

// Validate checks the structural invariants: equal lengths and strictly
// increasing timestamps.
func (s *Series) Validate() error {
	if len(s.Timestamps) != len(s.Values) {
		return fmt.Errorf("%w: %d timestamps, %d values", ErrLengthMismatch, len(s.Timestamps), len(s.Values))
	}

	for i := 1; i < len(s.Timestamps); i++ {
		if !s.Timestamps[i].After(s.Timestamps[i-1]) {
			return fmt.Errorf("%w: sample %d (%s) does not follow %s", ErrNotIncreasing, i,
				s.Timestamps[i].Format(time.RFC3339), s.Timestamps[i-1].Format(time.RFC3339))
		}
	}

	return nil
}

// MissingCount returns the number of NaN values.
func (s *Series) MissingCount() int {
	return stats.CountNaN(s.Values)
}

// WithMissing returns a copy where the given positions are set to NaN.
// Out-of-range positions are ignored.
func (s *Series) WithMissing(positions []int) *Series {
	out := s.Clone()

	for _, p := range positions {
		if p >= 0 && p < len(out.Values) {
			out.Values[p] = math.NaN()
		}
	}

	return out
}

// DropMissing returns a copy without the rows whose value is NaN.
func (s *Series) DropMissing() *Series {
	keep := make([]bool, len(s.Values))

	for i, v := range s.Values {
		keep[i] = !math.IsNaN(v)
	}

	out, _ := s.Keep(keep) //nolint:errcheck // mask built from the series itself

	return out
}

// Keep returns a copy containing only the rows where keep is true.
func (s *Series) Keep(keep []bool) (*Series, error) {
	if len(keep) != len(s.Values) {
		return nil, fmt.Errorf("%w: mask %d, series %d", ErrMaskLength, len(keep), len(s.Values))
	}

	out := &Series{
		Name:       s.Name,
		Timestamps: make([]time.Time, 0, len(s.Values)),
		Values:     make([]float64, 0, len(s.Values)),
	}

	for i, k := range keep {
		if k {
			out.Timestamps = append(out.Timestamps, s.Timestamps[i])
			out.Values = append(out.Values, s.Values[i])
		}
	}

	return out, nil
}

// Span returns the elapsed time between the first and last sample.
func (s *Series) Span() time.Duration {
	if len(s.Timestamps) < 2 {
		return 0
	}

	return s.Timestamps[len(s.Timestamps)-1].Sub(s.Timestamps[0])
}
