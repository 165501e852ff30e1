package filter

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/Sumatoshi-tech/shorefilter/pkg/alg/stats"
)

// Neighbourhood Hampel defaults.
const (
	DefaultNeighborhoodNStd       = 3.0
	DefaultNeighborhoodIterations = 5
	DefaultNeighborhoodWindowPerc = 0.05
)

// NeighborhoodConfig parameterizes NeighborhoodHampel.
type NeighborhoodConfig struct {
	// NStd is the band half-width in (population) standard deviations.
	NStd float64
	// Iterations is the fixed number of passes.
	Iterations int
	// WindowPerc sets the half-width as ceil(WindowPerc*N) samples.
	WindowPerc float64
}

// DefaultNeighborhoodConfig returns the parameters of the original shoreline
// noise reduction.
func DefaultNeighborhoodConfig() NeighborhoodConfig {
	return NeighborhoodConfig{
		NStd:       DefaultNeighborhoodNStd,
		Iterations: DefaultNeighborhoodIterations,
		WindowPerc: DefaultNeighborhoodWindowPerc,
	}
}

// Validate returns an error wrapping ErrInvalidConfig for bad parameters.
func (c NeighborhoodConfig) Validate() error {
	if !isFinite(c.NStd) || c.NStd < 0 {
		return fmt.Errorf("%w: n_std must be a finite value >= 0, got %v", ErrInvalidConfig, c.NStd)
	}

	if c.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be >= 1, got %d", ErrInvalidConfig, c.Iterations)
	}

	if math.IsNaN(c.WindowPerc) || c.WindowPerc <= 0 || c.WindowPerc > 1 {
		return fmt.Errorf("%w: window_perc must be in (0, 1], got %v", ErrInvalidConfig, c.WindowPerc)
	}

	return nil
}

// NeighborhoodHampel marks as NaN every sample lying strictly outside
// median ± NStd·std of its neighbourhood [n-w, n+w), where w is
// ceil(WindowPerc·N) and the statistics ignore missing samples.
//
// Each pass reads from a snapshot of the previous pass, so samples flagged
// earlier in the same pass still contribute to their neighbours' statistics.
// It returns the cleaned copy and the flagged positions in ascending order.
func NeighborhoodHampel(values []float64, cfg NeighborhoodConfig) ([]float64, []int, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, nil, err
	}

	count := len(values)
	half := int(math.Ceil(cfg.WindowPerc * float64(count)))
	current := slices.Clone(values)

	var flagged []int

	for range cfg.Iterations {
		next := slices.Clone(current)
		changed := false

		for n, v := range current {
			if math.IsNaN(v) {
				continue
			}

			lo := stats.Clamp(n-half, 0, count)
			hi := stats.Clamp(n+half, 0, count)

			window := stats.DropNaN(current[lo:hi])
			if len(window) == 0 {
				continue
			}

			_, std := stat.PopMeanStdDev(window, nil)
			med := stats.Median(window)

			if v > med+cfg.NStd*std || v < med-cfg.NStd*std {
				next[n] = math.NaN()
				flagged = append(flagged, n)
				changed = true
			}
		}

		current = next

		if !changed {
			break
		}
	}

	slices.Sort(flagged)

	return current, flagged, nil
}
