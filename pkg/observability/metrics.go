package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricStageRuns       = "shorefilter.stage.runs"
	metricSamplesIn       = "shorefilter.stage.samples.in"
	metricSamplesOut      = "shorefilter.stage.samples.out"
	metricOutliers        = "shorefilter.stage.outliers"
	metricStageIterations = "shorefilter.stage.iterations"
	metricStageDuration   = "shorefilter.stage.duration"
	metricTransects       = "shorefilter.transects"

	attrStage  = "stage"
	attrStatus = "status"
	attrState  = "state"

	// StatusOK marks a stage or transect that completed.
	StatusOK = "ok"
	// StatusError marks a stage or transect that returned an error.
	StatusError = "error"
)

// durationBucketBoundaries covers 100us to 60s; a single transect stage is
// usually well under a second, wavelet calibration on long series is not.
var durationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60}

// iterationBucketBoundaries covers the default cleaner cap.
var iterationBucketBoundaries = []float64{1, 2, 3, 5, 10, 20, 50, 100}

// metricBuilder accumulates instrument creation errors so a set of
// instruments can be built with a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(mt metric.Meter) *metricBuilder {
	return &metricBuilder{meter: mt}
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	}

	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	h, err := b.meter.Float64Histogram(name, opts...)
	b.setErr(name, err)

	return h
}

func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}

// FilterMetrics holds the OTel instruments describing filter stage runs.
type FilterMetrics struct {
	stageRuns  metric.Int64Counter
	samplesIn  metric.Int64Counter
	samplesOut metric.Int64Counter
	outliers   metric.Int64Counter
	iterations metric.Float64Histogram
	duration   metric.Float64Histogram
	transects  metric.Int64Counter
}

// StageStats describes one stage applied to one transect. Transect ids are
// not recorded as metric attributes.
type StageStats struct {
	Stage      string
	SamplesIn  int
	SamplesOut int
	Outliers   int
	Iterations int
	// State is the cleaner termination state, empty for single-pass stages.
	State    string
	Duration time.Duration
	Err      error
}

// NewFilterMetrics creates the filter instruments from the given meter.
func NewFilterMetrics(mt metric.Meter) (*FilterMetrics, error) {
	b := newMetricBuilder(mt)

	fm := &FilterMetrics{
		stageRuns:  b.counter(metricStageRuns, "Filter stage executions", "{run}"),
		samplesIn:  b.counter(metricSamplesIn, "Samples entering a filter stage", "{sample}"),
		samplesOut: b.counter(metricSamplesOut, "Samples leaving a filter stage", "{sample}"),
		outliers:   b.counter(metricOutliers, "Samples flagged as outliers", "{sample}"),
		iterations: b.histogram(metricStageIterations, "Passes performed by a filter stage", "{iteration}",
			iterationBucketBoundaries...),
		duration: b.histogram(metricStageDuration, "Filter stage duration in seconds", "s",
			durationBucketBoundaries...),
		transects: b.counter(metricTransects, "Transects processed", "{transect}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return fm, nil
}

// RecordStage records one stage run. Safe to call on a nil receiver (no-op).
func (fm *FilterMetrics) RecordStage(ctx context.Context, st StageStats) {
	if fm == nil {
		return
	}

	status := StatusOK
	if st.Err != nil {
		status = StatusError
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStage, st.Stage),
		attribute.String(attrStatus, status),
	}

	if st.State != "" {
		attrs = append(attrs, attribute.String(attrState, st.State))
	}

	opt := metric.WithAttributes(attrs...)
	stageOnly := metric.WithAttributes(attribute.String(attrStage, st.Stage))

	fm.stageRuns.Add(ctx, 1, opt)
	fm.duration.Record(ctx, st.Duration.Seconds(), opt)

	if st.Err != nil {
		return
	}

	fm.samplesIn.Add(ctx, int64(st.SamplesIn), stageOnly)
	fm.samplesOut.Add(ctx, int64(st.SamplesOut), stageOnly)
	fm.outliers.Add(ctx, int64(st.Outliers), stageOnly)

	if st.Iterations > 0 {
		fm.iterations.Record(ctx, float64(st.Iterations), stageOnly)
	}
}

// RecordTransect counts one processed transect. Safe on a nil receiver.
func (fm *FilterMetrics) RecordTransect(ctx context.Context, err error) {
	if fm == nil {
		return
	}

	status := StatusOK
	if err != nil {
		status = StatusError
	}

	fm.transects.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}
