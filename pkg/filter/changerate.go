package filter

import (
	"fmt"
	"math"
	"time"

	"github.com/Sumatoshi-tech/shorefilter/pkg/alg/stats"
	"github.com/Sumatoshi-tech/shorefilter/pkg/timeseries"
)

const hoursPerDay = 24

// ChangeRateResult is the outcome of one change-rate pass.
type ChangeRateResult struct {
	// Series is a copy of the input with flagged values set to NaN.
	Series *timeseries.Series
	// Flagged are the positions whose rate exceeded the threshold.
	Flagged []int
	// Rates holds |dy|/dt per sample in units per day; Rates[0] is 0.
	Rates     []float64
	Threshold float64
}

// ChangeRateFilter flags samples whose absolute change per day relative to the
// previous sample is strictly greater than the q-th quantile of all rates.
// Elapsed time is measured in whole days since the first sample; every step
// must advance by at least one whole day.
func ChangeRateFilter(s *timeseries.Series, q float64) (ChangeRateResult, error) {
	err := validateQuantile(q)
	if err != nil {
		return ChangeRateResult{}, err
	}

	if s == nil {
		return ChangeRateResult{}, fmt.Errorf("%w: nil series", ErrInvalidInput)
	}

	if len(s.Timestamps) != len(s.Values) {
		return ChangeRateResult{}, fmt.Errorf("%w: %d timestamps, %d values", ErrInvalidInput, len(s.Timestamps), len(s.Values))
	}

	if s.Len() < 2 {
		return ChangeRateResult{}, fmt.Errorf("%w: change rate needs 2 samples, have %d", ErrInsufficientData, s.Len())
	}

	elapsed := elapsedDays(s.Timestamps)
	rates := make([]float64, s.Len())

	for i := 1; i < s.Len(); i++ {
		dt := elapsed[i] - elapsed[i-1]
		if dt <= 0 {
			return ChangeRateResult{}, fmt.Errorf("%w: sample %d (%s) is %d whole days after its predecessor",
				ErrInvalidInput, i, s.Timestamps[i].Format(time.RFC3339), dt)
		}

		rates[i] = math.Abs(s.Values[i]-s.Values[i-1]) / float64(dt)
	}

	threshold := stats.NanPercentile(rates, q)

	var flagged []int

	for i, r := range rates {
		// Strict: a rate equal to the quantile is normal.
		if r > threshold {
			flagged = append(flagged, i)
		}
	}

	return ChangeRateResult{
		Series:    s.WithMissing(flagged),
		Flagged:   flagged,
		Rates:     rates,
		Threshold: threshold,
	}, nil
}

// ChangeRateLoopResult is the outcome of ChangeRateLoop.
type ChangeRateLoopResult struct {
	Series     *timeseries.Series
	Iterations int
	Removed    []time.Time
	// Thresholds holds the quantile threshold of each pass.
	Thresholds []float64
}

// ChangeRateLoop applies ChangeRateFilter a fixed number of times, dropping
// missing rows after each pass so rates and thresholds are recomputed on the
// shrunken series.
func ChangeRateLoop(s *timeseries.Series, iterations int, q float64) (ChangeRateLoopResult, error) {
	if iterations < 1 {
		return ChangeRateLoopResult{}, fmt.Errorf("%w: change iterations must be >= 1, got %d", ErrInvalidConfig, iterations)
	}

	err := validateQuantile(q)
	if err != nil {
		return ChangeRateLoopResult{}, err
	}

	if s == nil {
		return ChangeRateLoopResult{}, fmt.Errorf("%w: nil series", ErrInvalidInput)
	}

	result := ChangeRateLoopResult{}
	current := s

	for pass := range iterations {
		if current.Len() < 2 {
			return ChangeRateLoopResult{}, fmt.Errorf("%w: pass %d has %d samples", ErrInsufficientData, pass+1, current.Len())
		}

		res, passErr := ChangeRateFilter(current, q)
		if passErr != nil {
			return ChangeRateLoopResult{}, fmt.Errorf("change rate pass %d: %w", pass+1, passErr)
		}

		for _, idx := range res.Flagged {
			result.Removed = append(result.Removed, current.Timestamps[idx])
		}

		result.Thresholds = append(result.Thresholds, res.Threshold)
		result.Iterations++
		current = res.Series.DropMissing()
	}

	result.Series = current

	return result, nil
}

// elapsedDays returns the whole days (floored) between each timestamp and the first.
func elapsedDays(ts []time.Time) []int64 {
	out := make([]int64, len(ts))

	for i, t := range ts {
		out[i] = int64(math.Floor(t.Sub(ts[0]).Hours() / hoursPerDay))
	}

	return out
}
