package filter

import (
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/shorefilter/pkg/timeseries"
)

// State is the termination state of a HampelCleaner run.
type State int

// Cleaner states.
const (
	// StateRunning means rounds are still being applied.
	StateRunning State = iota
	// StateConverged means the last round flagged nothing.
	StateConverged
	// StateTruncated means the series became no longer than the window; the
	// result is best effort and may still contain outliers.
	StateTruncated
	// StateExhausted means MaxIterations rounds ran without converging.
	StateExhausted
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateTruncated:
		return "truncated"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CleanResult is the output of HampelCleaner.Clean.
type CleanResult struct {
	Series     *timeseries.Series
	Iterations int
	State      State
	// Removed lists the timestamps of dropped outliers in removal order.
	Removed []time.Time
	// LastBounds are the bounds of the final round, aligned to the centers
	// of the series that round examined. Empty when no round ran.
	LastBounds Bounds
}

// HampelCleaner repeatedly applies a HampelDetector, dropping flagged rows,
// until a round flags nothing, the series is no longer than the window, or
// MaxIterations rounds have run.
type HampelCleaner struct {
	cfg      Config
	detector *HampelDetector
}

// NewHampelCleaner validates cfg and returns a cleaner.
func NewHampelCleaner(cfg Config) (*HampelCleaner, error) {
	detector, err := NewHampelDetector(cfg)
	if err != nil {
		return nil, err
	}

	return &HampelCleaner{cfg: cfg, detector: detector}, nil
}

// Clean runs the cleaner over s. Missing rows are dropped before the first
// round; a series that is then no longer than the window is returned without
// running a round, in StateTruncated.
func (c *HampelCleaner) Clean(s *timeseries.Series) (CleanResult, error) {
	if s == nil {
		return CleanResult{}, fmt.Errorf("%w: nil series", ErrInvalidInput)
	}

	err := s.Validate()
	if err != nil {
		return CleanResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	result := CleanResult{State: StateRunning}
	current := s.DropMissing()

	for result.State == StateRunning {
		switch {
		case current.Len() <= c.cfg.WindowSize:
			result.State = StateTruncated

			continue
		case result.Iterations >= c.cfg.MaxIterations:
			result.State = StateExhausted

			continue
		}

		round, applyErr := c.detector.Apply(current.Values, nil)
		if applyErr != nil {
			return CleanResult{}, fmt.Errorf("hampel round %d: %w", result.Iterations+1, applyErr)
		}

		result.Iterations++
		result.LastBounds = round.Bounds

		if len(round.Indices) == 0 {
			result.State = StateConverged

			continue
		}

		for _, idx := range round.Indices {
			result.Removed = append(result.Removed, current.Timestamps[idx])
		}

		current = current.WithMissing(round.Indices).DropMissing()
	}

	result.Series = current

	return result, nil
}
