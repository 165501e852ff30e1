// Package pipeline runs an ordered list of filter stages over shoreline
// transects, one at a time or as a parallel batch, and reports what each
// stage removed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/shorefilter/pkg/filter"
	"github.com/Sumatoshi-tech/shorefilter/pkg/observability"
	"github.com/Sumatoshi-tech/shorefilter/pkg/timeseries"
)

// ErrNoStages is returned when a pipeline is built without stages.
var ErrNoStages = errors.New("pipeline has no stages")

// StageReport summarizes one stage applied to one transect.
type StageReport struct {
	Stage      string        `json:"stage" yaml:"stage"`
	SamplesIn  int           `json:"samples_in" yaml:"samples_in"`
	SamplesOut int           `json:"samples_out" yaml:"samples_out"`
	Removed    int           `json:"removed" yaml:"removed"`
	Iterations int           `json:"iterations" yaml:"iterations"`
	State      string        `json:"state,omitempty" yaml:"state,omitempty"`
	Duration   time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// Result is the outcome of running the pipeline over one transect.
type Result struct {
	Transect string
	// Raw is the series as it was handed to Run.
	Raw *timeseries.Series
	// Cleaned is the output of the last successful stage.
	Cleaned *timeseries.Series
	// Missing is the number of rows without a value dropped before the first stage.
	Missing int
	Stages  []StageReport
	// Band is the last Hampel band produced by any stage.
	Band *Band
	// Err is the error that stopped this transect, if any.
	Err error
}

// Removed returns the number of outliers dropped by all stages.
func (r Result) Removed() int {
	total := 0
	for _, st := range r.Stages {
		total += st.Removed
	}

	return total
}

// Pipeline applies its stages in order. It is safe for concurrent use as long
// as its stages are; the built-in stages keep no state between calls.
type Pipeline struct {
	stages  []Stage
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.FilterMetrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger; the default discards records.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTracer sets the tracer; the default is a no-op tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithMetrics records every stage run into m.
func WithMetrics(m *observability.FilterMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New returns a pipeline running stages in order.
func New(stages []Stage, opts ...Option) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}

	p := &Pipeline{
		stages: stages,
		logger: slog.New(slog.DiscardHandler),
		tracer: nooptrace.NewTracerProvider().Tracer(""),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// StageNames returns the names of the pipeline's stages in order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.Name()
	}

	return names
}

// Run applies every stage to s. Rows without a value are dropped first. On a
// stage error the returned Result holds the reports of the stages that
// completed and the error is also stored in Result.Err.
func (p *Pipeline) Run(ctx context.Context, s *timeseries.Series) (Result, error) {
	if s == nil {
		return Result{}, fmt.Errorf("run pipeline: %w: nil series", filter.ErrInvalidInput)
	}

	ctx, span := p.tracer.Start(ctx, "shorefilter.pipeline.run",
		trace.WithAttributes(
			attribute.String("transect.id", s.Name),
			attribute.Int("series.samples", s.Len()),
		))
	defer span.End()

	res := Result{Transect: s.Name, Raw: s}

	current := s.DropMissing()
	res.Missing = s.Len() - current.Len()
	res.Cleaned = current

	for _, st := range p.stages {
		err := ctx.Err()
		if err != nil {
			return p.fail(ctx, span, res, fmt.Errorf("transect %s: %w", s.Name, err))
		}

		out, report, err := p.runStage(ctx, st, current)
		if err != nil {
			return p.fail(ctx, span, res, fmt.Errorf("transect %s: stage %s: %w", s.Name, st.Name(), err))
		}

		res.Stages = append(res.Stages, report)

		if out.Band != nil {
			res.Band = out.Band
		}

		current = out.Series
		res.Cleaned = current
	}

	p.metrics.RecordTransect(ctx, nil)
	p.logger.InfoContext(ctx, "transect cleaned",
		"transect", s.Name,
		"samples_in", s.Len(),
		"samples_out", current.Len(),
		"removed", res.Removed(),
		"missing", res.Missing)

	return res, nil
}

func (p *Pipeline) runStage(
	ctx context.Context, st Stage, in *timeseries.Series,
) (StageOutput, StageReport, error) {
	ctx, span := p.tracer.Start(ctx, "shorefilter.stage."+st.Name(),
		trace.WithAttributes(attribute.String("stage.name", st.Name())))
	defer span.End()

	start := time.Now()
	out, err := st.Apply(ctx, in)
	elapsed := time.Since(start)

	stats := observability.StageStats{
		Stage:     st.Name(),
		SamplesIn: in.Len(),
		Duration:  elapsed,
		Err:       err,
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.RecordStage(ctx, stats)

		return StageOutput{}, StageReport{}, err
	}

	report := StageReport{
		Stage:      st.Name(),
		SamplesIn:  in.Len(),
		SamplesOut: out.Series.Len(),
		Removed:    len(out.Removed),
		Iterations: out.Iterations,
		State:      out.State,
		Duration:   elapsed,
	}

	stats.SamplesOut = report.SamplesOut
	stats.Outliers = report.Removed
	stats.Iterations = report.Iterations
	stats.State = report.State
	p.metrics.RecordStage(ctx, stats)

	span.SetAttributes(
		attribute.Int("stage.removed", report.Removed),
		attribute.Int("stage.iterations", report.Iterations),
	)

	p.logger.DebugContext(ctx, "stage done",
		"stage", report.Stage,
		"samples_in", report.SamplesIn,
		"samples_out", report.SamplesOut,
		"removed", report.Removed,
		"iterations", report.Iterations,
		"state", report.State,
		"duration", elapsed)

	return out, report, nil
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, res Result, err error) (Result, error) {
	res.Err = err

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.metrics.RecordTransect(ctx, err)
	p.logger.WarnContext(ctx, "transect failed", "transect", res.Transect, "error", err)

	return res, err
}
