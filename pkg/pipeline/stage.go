package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/shorefilter/pkg/filter"
	"github.com/Sumatoshi-tech/shorefilter/pkg/timeseries"
)

// Stage names accepted in pipeline.stages.
const (
	StageHampel       = "hampel"
	StageChangeRate   = "change_rate"
	StageNeighborhood = "neighborhood"
	StageWavelet      = "wavelet"
)

// DefaultStages is the cleaning order of the shoreline scripts.
var DefaultStages = []string{StageHampel, StageChangeRate}

// ErrUnknownStage is returned for a stage name with no registered constructor.
var ErrUnknownStage = errors.New("unknown stage")

// Stage is one step of the cleaning pipeline. Implementations must not modify
// their input.
type Stage interface {
	Name() string
	Apply(ctx context.Context, s *timeseries.Series) (StageOutput, error)
}

// StageOutput is what a stage hands to the next one.
type StageOutput struct {
	Series *timeseries.Series
	// Removed are the timestamps of rows the stage dropped.
	Removed    []time.Time
	Iterations int
	// State is the termination state of iterative stages.
	State string
	// Band is the final Hampel band, when the stage produced one.
	Band *Band
}

// Band is an outlier acceptance band aligned to timestamps.
type Band struct {
	Timestamps []time.Time
	Lower      []float64
	Upper      []float64
}

// Params carries the parameters every stage is built from.
type Params struct {
	Filter       filter.Config
	Neighborhood filter.NeighborhoodConfig
	Wavelet      filter.WaveletConfig
	// Calibrate picks the wavelet and sigma with CalibrateWavelet instead of
	// using Wavelet as given.
	Calibrate bool
}

// DefaultParams returns the default parameters of every stage.
func DefaultParams() Params {
	return Params{
		Filter:       filter.DefaultConfig(),
		Neighborhood: filter.DefaultNeighborhoodConfig(),
		Wavelet:      filter.WaveletConfig{Wavelet: filter.WaveletDB1},
		Calibrate:    true,
	}
}

type stageFactory struct {
	build       func(p Params) (Stage, error)
	description string
	options     func(p Params) []ConfigurationOption
}

var registry = map[string]stageFactory{
	StageHampel: {
		build:       newHampelStage,
		description: "iterative rolling-median Hampel cleaner; drops flagged rows until none remain",
		options:     hampelOptions,
	},
	StageChangeRate: {
		build:       newChangeRateStage,
		description: "drops samples whose change per day exceeds a quantile of all rates",
		options:     changeRateOptions,
	},
	StageNeighborhood: {
		build:       newNeighborhoodStage,
		description: "percentage-window Hampel with median and standard deviation bands",
		options:     neighborhoodOptions,
	},
	StageWavelet: {
		build:       newWaveletStage,
		description: "wavelet denoising; smooths values and never drops rows",
		options:     waveletOptions,
	},
}

// StageNames returns the registered stage names in sorted order.
func StageNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Describe returns the description and options of a registered stage.
func Describe(name string, p Params) (string, []ConfigurationOption, error) {
	f, ok := registry[name]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}

	return f.description, f.options(p), nil
}

// BuildStages constructs the named stages in order.
func BuildStages(names []string, p Params) ([]Stage, error) {
	stages := make([]Stage, 0, len(names))

	for _, name := range names {
		f, ok := registry[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownStage, name, strings.Join(StageNames(), ", "))
		}

		st, err := f.build(p)
		if err != nil {
			return nil, fmt.Errorf("build stage %s: %w", name, err)
		}

		stages = append(stages, st)
	}

	return stages, nil
}

type hampelStage struct {
	cfg filter.Config
}

func newHampelStage(p Params) (Stage, error) {
	err := p.Filter.Validate()
	if err != nil {
		return nil, err
	}

	return &hampelStage{cfg: p.Filter}, nil
}

func (h *hampelStage) Name() string { return StageHampel }

// Apply builds a cleaner per call; the detector caches its last result.
func (h *hampelStage) Apply(_ context.Context, s *timeseries.Series) (StageOutput, error) {
	cleaner, err := filter.NewHampelCleaner(h.cfg)
	if err != nil {
		return StageOutput{}, err
	}

	res, err := cleaner.Clean(s)
	if err != nil {
		return StageOutput{}, err
	}

	out := StageOutput{
		Series:     res.Series,
		Removed:    res.Removed,
		Iterations: res.Iterations,
		State:      res.State.String(),
	}

	// The last round only examined the final series when it converged.
	if res.State == filter.StateConverged && len(res.LastBounds.Lower) > 0 {
		half := (h.cfg.WindowSize - 1) / 2
		n := len(res.LastBounds.Lower)
		out.Band = &Band{
			Timestamps: res.Series.Timestamps[half : half+n],
			Lower:      res.LastBounds.Lower,
			Upper:      res.LastBounds.Upper,
		}
	}

	return out, nil
}

func hampelOptions(p Params) []ConfigurationOption {
	return []ConfigurationOption{
		{Key: "filter.hampel.window_size", Description: "odd sliding window length", Type: IntConfigurationOption, Default: p.Filter.WindowSize},
		{Key: "filter.hampel.n_sigma", Description: "threshold in robust standard deviations", Type: FloatConfigurationOption, Default: p.Filter.NSigma},
		{Key: "filter.hampel.consistency", Description: "MAD to standard deviation scale", Type: FloatConfigurationOption, Default: p.Filter.Consistency},
		{Key: "filter.hampel.max_iterations", Description: "cap on cleaning rounds", Type: IntConfigurationOption, Default: p.Filter.MaxIterations},
	}
}

type changeRateStage struct {
	iterations int
	quantile   float64
}

func newChangeRateStage(p Params) (Stage, error) {
	err := p.Filter.Validate()
	if err != nil {
		return nil, err
	}

	return &changeRateStage{iterations: p.Filter.ChangeIterations, quantile: p.Filter.Quantile}, nil
}

func (c *changeRateStage) Name() string { return StageChangeRate }

func (c *changeRateStage) Apply(_ context.Context, s *timeseries.Series) (StageOutput, error) {
	res, err := filter.ChangeRateLoop(s, c.iterations, c.quantile)
	if err != nil {
		return StageOutput{}, err
	}

	return StageOutput{Series: res.Series, Removed: res.Removed, Iterations: res.Iterations}, nil
}

func changeRateOptions(p Params) []ConfigurationOption {
	return []ConfigurationOption{
		{Key: "filter.change_rate.quantile", Description: "rate quantile above which samples are dropped", Type: FloatConfigurationOption, Default: p.Filter.Quantile},
		{Key: "filter.change_rate.iterations", Description: "number of passes", Type: IntConfigurationOption, Default: p.Filter.ChangeIterations},
	}
}

type neighborhoodStage struct {
	cfg filter.NeighborhoodConfig
}

func newNeighborhoodStage(p Params) (Stage, error) {
	err := p.Neighborhood.Validate()
	if err != nil {
		return nil, err
	}

	return &neighborhoodStage{cfg: p.Neighborhood}, nil
}

func (n *neighborhoodStage) Name() string { return StageNeighborhood }

func (n *neighborhoodStage) Apply(_ context.Context, s *timeseries.Series) (StageOutput, error) {
	_, flagged, err := filter.NeighborhoodHampel(s.Values, n.cfg)
	if err != nil {
		return StageOutput{}, err
	}

	removed := make([]time.Time, len(flagged))
	for i, idx := range flagged {
		removed[i] = s.Timestamps[idx]
	}

	return StageOutput{
		Series:     s.WithMissing(flagged).DropMissing(),
		Removed:    removed,
		Iterations: n.cfg.Iterations,
	}, nil
}

func neighborhoodOptions(p Params) []ConfigurationOption {
	return []ConfigurationOption{
		{Key: "filter.neighborhood.n_std", Description: "band half-width in standard deviations", Type: FloatConfigurationOption, Default: p.Neighborhood.NStd},
		{Key: "filter.neighborhood.iterations", Description: "maximum passes", Type: IntConfigurationOption, Default: p.Neighborhood.Iterations},
		{Key: "filter.neighborhood.window_perc", Description: "half window as a fraction of the series length", Type: FloatConfigurationOption, Default: p.Neighborhood.WindowPerc},
	}
}

type waveletStage struct {
	cfg       filter.WaveletConfig
	calibrate bool
}

func newWaveletStage(p Params) (Stage, error) {
	if !p.Calibrate {
		err := p.Wavelet.Validate()
		if err != nil {
			return nil, err
		}
	}

	return &waveletStage{cfg: p.Wavelet, calibrate: p.Calibrate}, nil
}

func (w *waveletStage) Name() string { return StageWavelet }

func (w *waveletStage) Apply(_ context.Context, s *timeseries.Series) (StageOutput, error) {
	var (
		denoised []float64
		err      error
	)

	if w.calibrate {
		var res filter.CalibrationResult

		res, err = filter.CalibrateWavelet(s.Values)
		denoised = res.Denoised
	} else {
		denoised, err = filter.WaveletDenoise(s.Values, w.cfg)
	}

	if err != nil {
		return StageOutput{}, err
	}

	out, err := timeseries.New(s.Name, s.Timestamps, denoised)
	if err != nil {
		return StageOutput{}, fmt.Errorf("wavelet output: %w", err)
	}

	return StageOutput{Series: out, Iterations: 1}, nil
}

func waveletOptions(p Params) []ConfigurationOption {
	return []ConfigurationOption{
		{Key: "filter.wavelet.calibrate", Description: "choose wavelet and sigma by self-supervised calibration", Type: BoolConfigurationOption, Default: p.Calibrate},
		{Key: "filter.wavelet.wavelet", Description: "db1 or db2 when not calibrating", Type: StringConfigurationOption, Default: string(p.Wavelet.Wavelet)},
		{Key: "filter.wavelet.sigma", Description: "noise sigma in data units, 0 estimates it", Type: FloatConfigurationOption, Default: p.Wavelet.Sigma},
	}
}
