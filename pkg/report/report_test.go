package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/shorefilter/pkg/pipeline"
	"github.com/Sumatoshi-tech/shorefilter/pkg/report"
	"github.com/Sumatoshi-tech/shorefilter/pkg/timeseries"
)

var epoch = time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)

func series(t *testing.T, name string, offsets []int, values []float64) *timeseries.Series {
	t.Helper()

	dates := make([]time.Time, len(offsets))
	for i, off := range offsets {
		dates[i] = epoch.AddDate(0, 0, off)
	}

	s, err := timeseries.New(name, dates, values)
	require.NoError(t, err)

	return s
}

func results(t *testing.T) []pipeline.Result {
	t.Helper()

	raw := series(t, "T1", []int{0, 7, 14, 21, 28}, []float64{80, 81, 140, 82, 81})
	cleaned := series(t, "T1", []int{0, 7, 21, 28}, []float64{80, 81, 82, 81})

	return []pipeline.Result{
		{
			Transect: "T1",
			Raw:      raw,
			Cleaned:  cleaned,
			Stages: []pipeline.StageReport{
				{Stage: pipeline.StageHampel, SamplesIn: 5, SamplesOut: 4, Removed: 1, Iterations: 2, State: "converged"},
				{Stage: pipeline.StageChangeRate, SamplesIn: 4, SamplesOut: 4, Iterations: 3},
			},
			Band: &pipeline.Band{
				Timestamps: cleaned.Timestamps[1:3],
				Lower:      []float64{79, 80},
				Upper:      []float64{83, 84},
			},
		},
		{
			Transect: "T2",
			Raw:      series(t, "T2", []int{0, 7}, []float64{1, 2}),
			Err:      errors.New("transect T2: stage hampel: insufficient data"),
		},
	}
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	s := report.NewSummary("", "in.csv", pipeline.DefaultStages, results(t),
		map[string]string{"T1": "out/T1.csv"}, epoch, time.Second)

	require.Len(t, s.Transects, 2)
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, 1, s.Failed())
	assert.Equal(t, 1, s.Removed())

	first := s.Transects[0]
	assert.Equal(t, report.StatusOK, first.Status)
	assert.Equal(t, 5, first.SamplesIn)
	assert.Equal(t, 4, first.SamplesOut)
	assert.Equal(t, "out/T1.csv", first.Output)

	second := s.Transects[1]
	assert.Equal(t, report.StatusFailed, second.Status)
	assert.Contains(t, second.Error, "insufficient data")
	assert.Empty(t, second.Output)
}

func TestNewSummary_UniqueRunIDs(t *testing.T) {
	t.Parallel()

	a := report.NewSummary("", "in.csv", nil, nil, nil, epoch, 0)
	b := report.NewSummary("", "in.csv", nil, nil, nil, epoch, 0)

	assert.NotEqual(t, a.RunID, b.RunID)

	c := report.NewSummary("run-7", "in.csv", nil, nil, nil, epoch, 0)
	assert.Equal(t, "run-7", c.RunID)
}

func TestWrite_Formats(t *testing.T) {
	t.Parallel()

	s := report.NewSummary("", "in.csv", pipeline.DefaultStages, results(t), nil, epoch, 1500*time.Millisecond)

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, report.Write(&buf, s, report.FormatJSON))

		var got report.Summary
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, s.RunID, got.RunID)
		require.Len(t, got.Transects, 2)
		assert.Equal(t, "hampel", got.Transects[0].Stages[0].Stage)
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, report.Write(&buf, s, "YAML"))

		var got map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, s.RunID, got["run_id"])
		assert.Contains(t, buf.String(), "status: failed")
	})

	t.Run("table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, report.Write(&buf, s, report.FormatTable))

		out := buf.String()
		assert.Contains(t, out, "Transect")
		assert.Contains(t, out, "change_rate")
		assert.Contains(t, out, "converged")
		assert.Contains(t, out, "1 of 2 transects failed")
		assert.Contains(t, out, "hampel -> change_rate")
		assert.Contains(t, out, "2 transects")
		assert.Contains(t, out, "1.5 s")
		assert.NotContains(t, out, "TRANSECT")
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()

		err := report.Write(&bytes.Buffer{}, s, "xml")
		require.ErrorIs(t, err, report.ErrUnknownFormat)
	})
}

func TestWriteTable_AllCleaned(t *testing.T) {
	t.Parallel()

	s := report.NewSummary("", "in.csv", pipeline.DefaultStages, results(t)[:1], nil, epoch, time.Second)

	var buf bytes.Buffer
	require.NoError(t, report.WriteTable(&buf, s))
	assert.Contains(t, buf.String(), "all 1 transects cleaned")
}

func TestWriteChart(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.WriteChart(&buf, results(t)[0]))

	out := buf.String()
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "Transect T1")
	assert.Contains(t, out, "hampel upper")
	assert.Contains(t, out, "2020-03-15")
}

func TestWriteChart_NoBand(t *testing.T) {
	t.Parallel()

	res := results(t)[0]
	res.Band = nil

	var buf bytes.Buffer
	require.NoError(t, report.WriteChart(&buf, res))
	assert.NotContains(t, buf.String(), "hampel lower")
}

func TestWriteChart_NoData(t *testing.T) {
	t.Parallel()

	err := report.WriteChart(&bytes.Buffer{}, pipeline.Result{Transect: "empty"})
	require.ErrorIs(t, err, report.ErrNoData)
}
