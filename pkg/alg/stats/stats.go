// Package stats provides core statistical helpers for shoreline position series.
// Missing samples are represented as NaN; functions prefixed with Nan ignore them.
package stats

import (
	"cmp"
	"math"
	"slices"
)

// Well-known percentile thresholds.
const (
	PercentileMedian = 0.5
	// PercentileUpperQuartile is the default change-rate cut-off.
	PercentileUpperQuartile = 0.75
)

// Percentile returns the p-th percentile of values using linear interpolation
// between closest ranks, the same rule numpy uses by default.
// p must be in [0, 1]. The input slice is not modified (a copy is sorted internally).
// Returns NaN for an empty slice.
func Percentile(values []float64, p float64) float64 {
	count := len(values)
	if count == 0 {
		return math.NaN()
	}

	sorted := make([]float64, count)
	copy(sorted, values)
	slices.Sort(sorted)

	idx := p * float64(count-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	if lower == upper || upper >= count {
		return sorted[lower]
	}

	frac := idx - float64(lower)

	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Median returns the 50th percentile of values.
// Returns NaN for an empty slice.
func Median(values []float64) float64 {
	return Percentile(values, PercentileMedian)
}

// NanPercentile is Percentile over the non-NaN elements of values.
// Returns NaN when every element is missing.
func NanPercentile(values []float64, p float64) float64 {
	return Percentile(DropNaN(values), p)
}

// DropNaN returns a new slice holding the non-NaN elements of values in order.
func DropNaN(values []float64) []float64 {
	kept := make([]float64, 0, len(values))

	for _, v := range values {
		if !math.IsNaN(v) {
			kept = append(kept, v)
		}
	}

	return kept
}

// CountNaN returns the number of NaN elements in values.
func CountNaN(values []float64) int {
	var n int

	for _, v := range values {
		if math.IsNaN(v) {
			n++
		}
	}

	return n
}

// AllFinite reports whether values holds no NaN or infinite elements.
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}

// Clamp restricts val to the range [lo, hi].
func Clamp[T cmp.Ordered](val, lo, hi T) T {
	return max(lo, min(val, hi))
}
