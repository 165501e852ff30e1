package observability_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/shorefilter/pkg/observability"
)

func TestInit_NoopWhenNoEndpoint(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	assert.NotNil(t, providers.Registry)

	ctx, span := providers.Tracer.Start(context.Background(), "noop")
	span.End()

	assert.NotNil(t, ctx)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_WithResourceAttributes(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "test"
	cfg.Mode = observability.ModeLibrary

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	assert.NotNil(t, providers.Meter)
}

func TestInit_MetricsReachRegistry(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	fm, err := observability.NewFilterMetrics(providers.Meter)
	require.NoError(t, err)

	fm.RecordStage(context.Background(), observability.StageStats{
		Stage:      "hampel",
		SamplesIn:  40,
		SamplesOut: 38,
		Outliers:   2,
		Iterations: 2,
		State:      "converged",
		Duration:   3 * time.Millisecond,
	})
	fm.RecordTransect(context.Background(), nil)

	families, err := providers.Registry.Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}

	joined := strings.Join(names, " ")
	assert.Contains(t, joined, "shorefilter_stage_outliers")
	assert.Contains(t, joined, "shorefilter_stage_duration")
	assert.Contains(t, joined, "shorefilter_transects")
}

func TestWriteMetricsFile(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	fm, err := observability.NewFilterMetrics(providers.Meter)
	require.NoError(t, err)

	fm.RecordStage(context.Background(), observability.StageStats{Stage: "change_rate", SamplesIn: 10, SamplesOut: 9, Outliers: 1})

	path := filepath.Join(t.TempDir(), "shorefilter.prom")
	require.NoError(t, observability.WriteMetricsFile(path, providers.Registry))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `stage="change_rate"`)
}

func TestWriteMetricsFile_BadPath(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	err = observability.WriteMetricsFile(filepath.Join(t.TempDir(), "missing", "x.prom"), providers.Registry)
	require.Error(t, err)
}

func TestNewLogger_WritesToConfiguredOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogOutput = &buf
	cfg.LogJSON = true

	observability.NewLogger(cfg).Info("hello", "transect", "t1")

	assert.Contains(t, buf.String(), `"transect":"t1"`)
	assert.Contains(t, buf.String(), `"service":"shorefilter"`)
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "api-key=abc", want: map[string]string{"api-key": "abc"}},
		{name: "multiple_with_spaces", raw: " a = 1 , b=2", want: map[string]string{"a": "1", "b": "2"}},
		{name: "invalid_only", raw: "novalue", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, observability.ParseOTLPHeaders(tt.raw))
		})
	}
}
