package filter

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// WindowStats holds rolling robust statistics for every center that has a
// full window. Index j corresponds to center j+HalfWidth of the input.
type WindowStats struct {
	Median    []float64
	Sigma     []float64
	HalfWidth int
}

// Len returns the number of computable centers.
func (w WindowStats) Len() int {
	return len(w.Median)
}

// RollingStats computes the median and c-scaled median absolute deviation of
// every full window of odd length windowSize over x. The result has
// len(x)-(windowSize-1) entries.
func RollingStats(x []float64, windowSize int, c float64) (WindowStats, error) {
	err := validateWindow(windowSize)
	if err != nil {
		return WindowStats{}, err
	}

	if windowSize > len(x) {
		return WindowStats{}, fmt.Errorf("%w: %w: window_size %d exceeds series length %d",
			ErrInvalidConfig, ErrInsufficientData, windowSize, len(x))
	}

	half := (windowSize - 1) / 2
	count := len(x) - 2*half

	out := WindowStats{
		Median:    make([]float64, count),
		Sigma:     make([]float64, count),
		HalfWidth: half,
	}

	for j := range count {
		window := x[j : j+windowSize]

		med, medErr := stats.Median(window)
		if medErr != nil {
			return WindowStats{}, fmt.Errorf("window %d median: %w", j, medErr)
		}

		mad, madErr := stats.MedianAbsoluteDeviationPopulation(window)
		if madErr != nil {
			return WindowStats{}, fmt.Errorf("window %d mad: %w", j, madErr)
		}

		out.Median[j] = med
		out.Sigma[j] = c * mad
	}

	return out, nil
}
