package filter

import (
	"fmt"
	"math"

	"github.com/Sumatoshi-tech/shorefilter/pkg/alg/stats"
)

// Bounds holds the per-center acceptance band of a Hampel pass.
// Both slices have len(x)-(WindowSize-1) entries.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// HampelResult is the outcome of one HampelDetector.Apply call.
type HampelResult struct {
	// Indices are the flagged positions in ascending order, or their labels
	// in position order when labels were supplied.
	Indices []int
	Bounds  Bounds
	Stats   WindowStats
}

// HampelDetector flags samples whose distance to the local median is at least
// NSigma robust standard deviations. The first and last (WindowSize-1)/2
// samples have no full window and are never flagged.
//
// The detector remembers the result of its most recent successful Apply call.
// It is not safe for concurrent use.
type HampelDetector struct {
	cfg  Config
	last *HampelResult
}

// NewHampelDetector validates cfg and returns a detector.
func NewHampelDetector(cfg Config) (*HampelDetector, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &HampelDetector{cfg: cfg}, nil
}

// Apply runs the detector over x. When labels is non-nil it must have the same
// length as x and the returned indices are labels[i] instead of positions.
func (d *HampelDetector) Apply(x []float64, labels []int) (HampelResult, error) {
	d.last = nil

	if labels != nil && len(labels) != len(x) {
		return HampelResult{}, fmt.Errorf("%w: %d labels for %d values", ErrInvalidInput, len(labels), len(x))
	}

	if !stats.AllFinite(x) {
		return HampelResult{}, fmt.Errorf("%w: values must be finite", ErrInvalidInput)
	}

	ws, err := RollingStats(x, d.cfg.WindowSize, d.cfg.Consistency)
	if err != nil {
		return HampelResult{}, err
	}

	result := HampelResult{
		Bounds: Bounds{
			Lower: make([]float64, ws.Len()),
			Upper: make([]float64, ws.Len()),
		},
		Stats: ws,
	}

	for j := range ws.Len() {
		band := d.cfg.NSigma * ws.Sigma[j]
		result.Bounds.Lower[j] = ws.Median[j] - band
		result.Bounds.Upper[j] = ws.Median[j] + band

		center := j + ws.HalfWidth

		// Inclusive: a deviation equal to the band is an outlier, so constant
		// windows (sigma 0) are flagged.
		if math.Abs(x[center]-ws.Median[j]) < band {
			continue
		}

		if labels != nil {
			result.Indices = append(result.Indices, labels[center])
		} else {
			result.Indices = append(result.Indices, center)
		}
	}

	d.last = &result

	return result, nil
}

// Indices returns the flagged indices of the last Apply call.
func (d *HampelDetector) Indices() ([]int, error) {
	if d.last == nil {
		return nil, fmt.Errorf("%w: outlier indices, call Apply first", ErrNotYetComputed)
	}

	return d.last.Indices, nil
}

// Bounds returns the lower and upper bounds of the last Apply call.
func (d *HampelDetector) Bounds() (Bounds, error) {
	if d.last == nil {
		return Bounds{}, fmt.Errorf("%w: bounds, call Apply first", ErrNotYetComputed)
	}

	return d.last.Bounds, nil
}

// HampelIndices is a one-shot helper returning the flagged positions of x.
func HampelIndices(x []float64, cfg Config) ([]int, error) {
	d, err := NewHampelDetector(cfg)
	if err != nil {
		return nil, err
	}

	res, err := d.Apply(x, nil)
	if err != nil {
		return nil, err
	}

	return res.Indices, nil
}
