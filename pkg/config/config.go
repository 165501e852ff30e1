// Package config loads shorefilter settings from defaults, an optional YAML
// file and SHOREFILTER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/shorefilter/pkg/filter"
	"github.com/Sumatoshi-tech/shorefilter/pkg/observability"
	"github.com/Sumatoshi-tech/shorefilter/pkg/pipeline"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers  = errors.New("pipeline workers must be >= 0")
	ErrNoStages        = errors.New("pipeline needs at least one stage")
	ErrUnknownStage    = errors.New("unknown pipeline stage")
	ErrInvalidLogLevel = errors.New("invalid log level")
	ErrSchemaViolation = errors.New("config file does not match schema")
)

// Config is the complete shorefilter configuration.
type Config struct {
	Filter    FilterSection   `mapstructure:"filter"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// FilterSection groups the per-filter parameters.
type FilterSection struct {
	Hampel       HampelConfig       `mapstructure:"hampel"`
	ChangeRate   ChangeRateConfig   `mapstructure:"change_rate"`
	Neighborhood NeighborhoodConfig `mapstructure:"neighborhood"`
	Wavelet      WaveletConfig      `mapstructure:"wavelet"`
}

// HampelConfig holds the rolling Hampel parameters.
type HampelConfig struct {
	WindowSize    int     `mapstructure:"window_size"`
	NSigma        float64 `mapstructure:"n_sigma"`
	Consistency   float64 `mapstructure:"consistency"`
	MaxIterations int     `mapstructure:"max_iterations"`
}

// ChangeRateConfig holds the change-rate filter parameters.
type ChangeRateConfig struct {
	Quantile   float64 `mapstructure:"quantile"`
	Iterations int     `mapstructure:"iterations"`
}

// NeighborhoodConfig holds the percentage-window Hampel parameters.
type NeighborhoodConfig struct {
	NStd       float64 `mapstructure:"n_std"`
	Iterations int     `mapstructure:"iterations"`
	WindowPerc float64 `mapstructure:"window_perc"`
}

// WaveletConfig holds the wavelet denoiser parameters.
type WaveletConfig struct {
	Calibrate bool    `mapstructure:"calibrate"`
	Wavelet   string  `mapstructure:"wavelet"`
	Sigma     float64 `mapstructure:"sigma"`
}

// PipelineConfig selects and schedules stages.
type PipelineConfig struct {
	Stages  []string `mapstructure:"stages"`
	Workers int      `mapstructure:"workers"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig controls OTLP export and the Prometheus textfile.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	MetricsFile  string `mapstructure:"metrics_file"`
}

// FilterConfig maps the Hampel and change-rate sections to filter.Config.
func (c *Config) FilterConfig() filter.Config {
	return filter.Config{
		WindowSize:       c.Filter.Hampel.WindowSize,
		NSigma:           c.Filter.Hampel.NSigma,
		Consistency:      c.Filter.Hampel.Consistency,
		Quantile:         c.Filter.ChangeRate.Quantile,
		MaxIterations:    c.Filter.Hampel.MaxIterations,
		ChangeIterations: c.Filter.ChangeRate.Iterations,
	}
}

// Params returns the parameters the pipeline stages are built from.
func (c *Config) Params() pipeline.Params {
	return pipeline.Params{
		Filter: c.FilterConfig(),
		Neighborhood: filter.NeighborhoodConfig{
			NStd:       c.Filter.Neighborhood.NStd,
			Iterations: c.Filter.Neighborhood.Iterations,
			WindowPerc: c.Filter.Neighborhood.WindowPerc,
		},
		Wavelet: filter.WaveletConfig{
			Wavelet: filter.Wavelet(c.Filter.Wavelet.Wavelet),
			Sigma:   c.Filter.Wavelet.Sigma,
		},
		Calibrate: c.Filter.Wavelet.Calibrate,
	}
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.Logging.Level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return level, nil
}

// Observability returns the telemetry settings as an observability.Config.
func (c *Config) Observability() (observability.Config, error) {
	level, err := c.LogLevel()
	if err != nil {
		return observability.Config{}, err
	}

	obs := observability.DefaultConfig()
	obs.LogLevel = level
	obs.LogJSON = c.Logging.JSON
	obs.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	obs.OTLPInsecure = c.Telemetry.OTLPInsecure

	return obs, nil
}

// Validate checks cross-field constraints the schema cannot express and the
// filter parameters themselves.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Pipeline.Workers)
	}

	if len(c.Pipeline.Stages) == 0 {
		return ErrNoStages
	}

	known := pipeline.StageNames()

	for _, name := range c.Pipeline.Stages {
		if !slices.Contains(known, strings.TrimSpace(name)) {
			return fmt.Errorf("%w: %q", ErrUnknownStage, name)
		}
	}

	_, err := c.LogLevel()
	if err != nil {
		return err
	}

	err = c.FilterConfig().Validate()
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	params := c.Params()

	err = params.Neighborhood.Validate()
	if err != nil {
		return fmt.Errorf("filter.neighborhood: %w", err)
	}

	if !params.Calibrate {
		err = params.Wavelet.Validate()
		if err != nil {
			return fmt.Errorf("filter.wavelet: %w", err)
		}
	}

	return nil
}
