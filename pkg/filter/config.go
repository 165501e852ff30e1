// Package filter implements the outlier filters applied to shoreline position
// series before forecasting: a rolling Hampel identifier with an iterative
// cleaner, a time-normalized change-rate filter, a neighbourhood Hampel
// variant and wavelet denoising.
//
// Filters never retain caller slices and never impute values: flagged samples
// become NaN (or are dropped) in a freshly allocated result.
package filter

import (
	"errors"
	"fmt"
	"math"
)

// Error taxonomy shared by every filter in this package.
var (
	// ErrInvalidConfig indicates malformed filter parameters.
	ErrInvalidConfig = errors.New("invalid filter config")
	// ErrInvalidInput indicates an unsupported input shape or non-monotonic timestamps.
	ErrInvalidInput = errors.New("invalid filter input")
	// ErrInsufficientData indicates the series is too short for the requested operation.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNotYetComputed indicates diagnostics were requested before Apply ran.
	ErrNotYetComputed = errors.New("not yet computed")
)

// Default parameter values.
const (
	DefaultWindowSize       = 5
	DefaultNSigma           = 3.0
	DefaultConsistency      = 1.4826
	DefaultQuantile         = 0.75
	DefaultMaxIterations    = 100
	DefaultChangeIterations = 1
)

// Config holds the immutable parameters of the Hampel and change-rate filters.
type Config struct {
	// WindowSize is the odd sliding window length; (WindowSize-1)/2 samples
	// on each side of the center are used.
	WindowSize int
	// NSigma is the outlier threshold in robust standard deviations.
	NSigma float64
	// Consistency scales the MAD into a standard deviation estimate.
	Consistency float64
	// Quantile is the change-rate cut-off in [0, 1].
	Quantile float64
	// MaxIterations caps the iterative Hampel cleaner.
	MaxIterations int
	// ChangeIterations is the fixed number of change-rate passes.
	ChangeIterations int
}

// DefaultConfig returns the parameters used by the shoreline scripts.
func DefaultConfig() Config {
	return Config{
		WindowSize:       DefaultWindowSize,
		NSigma:           DefaultNSigma,
		Consistency:      DefaultConsistency,
		Quantile:         DefaultQuantile,
		MaxIterations:    DefaultMaxIterations,
		ChangeIterations: DefaultChangeIterations,
	}
}

// Validate checks every parameter and returns an error wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	err := validateWindow(c.WindowSize)
	if err != nil {
		return err
	}

	if !isFinite(c.NSigma) || c.NSigma < 0 {
		return fmt.Errorf("%w: n_sigma must be a finite value >= 0, got %v", ErrInvalidConfig, c.NSigma)
	}

	if !isFinite(c.Consistency) || c.Consistency < 0 {
		return fmt.Errorf("%w: consistency constant must be a finite value >= 0, got %v", ErrInvalidConfig, c.Consistency)
	}

	err = validateQuantile(c.Quantile)
	if err != nil {
		return err
	}

	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be >= 1, got %d", ErrInvalidConfig, c.MaxIterations)
	}

	if c.ChangeIterations < 1 {
		return fmt.Errorf("%w: change iterations must be >= 1, got %d", ErrInvalidConfig, c.ChangeIterations)
	}

	return nil
}

func validateWindow(windowSize int) error {
	if windowSize < 1 || windowSize%2 == 0 {
		return fmt.Errorf("%w: window_size must be a positive odd integer, got %d", ErrInvalidConfig, windowSize)
	}

	return nil
}

func validateQuantile(q float64) error {
	if math.IsNaN(q) || q < 0 || q > 1 {
		return fmt.Errorf("%w: quantile must be in [0, 1], got %v", ErrInvalidConfig, q)
	}

	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
