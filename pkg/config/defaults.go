package config

import (
	"slices"

	"github.com/Sumatoshi-tech/shorefilter/pkg/filter"
	"github.com/Sumatoshi-tech/shorefilter/pkg/pipeline"
)

// Hampel filter defaults.
const (
	DefaultHampelWindowSize    = filter.DefaultWindowSize
	DefaultHampelNSigma        = filter.DefaultNSigma
	DefaultHampelConsistency   = filter.DefaultConsistency
	DefaultHampelMaxIterations = filter.DefaultMaxIterations
)

// Change-rate filter defaults.
const (
	DefaultChangeRateQuantile   = filter.DefaultQuantile
	DefaultChangeRateIterations = filter.DefaultChangeIterations
)

// Neighbourhood Hampel defaults.
const (
	DefaultNeighborhoodNStd       = filter.DefaultNeighborhoodNStd
	DefaultNeighborhoodIterations = filter.DefaultNeighborhoodIterations
	DefaultNeighborhoodWindowPerc = filter.DefaultNeighborhoodWindowPerc
)

// Wavelet denoiser defaults.
const (
	DefaultWaveletCalibrate = true
	DefaultWaveletName      = string(filter.WaveletDB1)
	DefaultWaveletSigma     = 0.0
)

// Pipeline defaults. Zero workers means GOMAXPROCS.
const (
	DefaultPipelineWorkers = 0
)

// DefaultPipelineStages returns the default stage order.
func DefaultPipelineStages() []string {
	return slices.Clone(pipeline.DefaultStages)
}

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)

// Telemetry defaults.
const (
	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultMetricsFile  = ""
)
