package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/shorefilter/pkg/observability"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestFilterMetrics_RecordStage(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	fm, err := observability.NewFilterMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	fm.RecordStage(ctx, observability.StageStats{
		Stage: "hampel", SamplesIn: 50, SamplesOut: 46, Outliers: 4, Iterations: 3, Duration: time.Millisecond,
	})
	fm.RecordStage(ctx, observability.StageStats{
		Stage: "change_rate", SamplesIn: 46, SamplesOut: 40, Outliers: 6, Duration: time.Millisecond,
	})
	fm.RecordStage(ctx, observability.StageStats{Stage: "wavelet", SamplesIn: 9, Err: errors.New("boom")})

	metrics := collect(t, reader)

	assert.Equal(t, int64(3), sumOf(t, metrics["shorefilter.stage.runs"]))
	assert.Equal(t, int64(10), sumOf(t, metrics["shorefilter.stage.outliers"]))
	assert.Equal(t, int64(96), sumOf(t, metrics["shorefilter.stage.samples.in"]), "failed stages are not counted")
	assert.Equal(t, int64(86), sumOf(t, metrics["shorefilter.stage.samples.out"]))
	assert.Contains(t, metrics, "shorefilter.stage.iterations")
	assert.Contains(t, metrics, "shorefilter.stage.duration")
}

func TestFilterMetrics_RecordTransect(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	fm, err := observability.NewFilterMetrics(mp.Meter("test"))
	require.NoError(t, err)

	fm.RecordTransect(context.Background(), nil)
	fm.RecordTransect(context.Background(), errors.New("bad"))

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, metrics["shorefilter.transects"]))
}

func TestFilterMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var fm *observability.FilterMetrics

	assert.NotPanics(t, func() {
		fm.RecordStage(context.Background(), observability.StageStats{Stage: "hampel"})
		fm.RecordTransect(context.Background(), nil)
	})
}
