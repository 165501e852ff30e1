// Package report summarizes a filtering run for people and machines: a
// terminal table, JSON or YAML, and an HTML chart per transect.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/shorefilter/pkg/pipeline"
)

// Transect statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Summary describes one run over a transect file.
type Summary struct {
	RunID     string            `json:"run_id" yaml:"run_id"`
	Input     string            `json:"input" yaml:"input"`
	StartedAt time.Time         `json:"started_at" yaml:"started_at"`
	Duration  time.Duration     `json:"duration_ns" yaml:"duration_ns"`
	Stages    []string          `json:"stages" yaml:"stages"`
	Transects []TransectSummary `json:"transects" yaml:"transects"`
}

// TransectSummary is the per-transect line of a Summary.
type TransectSummary struct {
	Transect   string                 `json:"transect" yaml:"transect"`
	Status     string                 `json:"status" yaml:"status"`
	SamplesIn  int                    `json:"samples_in" yaml:"samples_in"`
	SamplesOut int                    `json:"samples_out" yaml:"samples_out"`
	Missing    int                    `json:"missing" yaml:"missing"`
	Removed    int                    `json:"removed" yaml:"removed"`
	Error      string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Output     string                 `json:"output,omitempty" yaml:"output,omitempty"`
	Stages     []pipeline.StageReport `json:"stages" yaml:"stages"`
}

// NewRunID returns a random run id.
func NewRunID() string {
	return uuid.NewString()
}

// NewSummary builds a Summary; an empty runID gets a fresh one. outputs maps
// transect ids to the file their cleaned series was written to, and may be nil.
func NewSummary(
	runID, input string, stages []string, results []pipeline.Result,
	outputs map[string]string, startedAt time.Time, elapsed time.Duration,
) Summary {
	if runID == "" {
		runID = NewRunID()
	}

	s := Summary{
		RunID:     runID,
		Input:     input,
		StartedAt: startedAt,
		Duration:  elapsed,
		Stages:    stages,
		Transects: make([]TransectSummary, 0, len(results)),
	}

	for _, res := range results {
		ts := TransectSummary{
			Transect: res.Transect,
			Status:   StatusOK,
			Missing:  res.Missing,
			Removed:  res.Removed(),
			Output:   outputs[res.Transect],
			Stages:   res.Stages,
		}

		if res.Raw != nil {
			ts.SamplesIn = res.Raw.Len()
		}

		if res.Cleaned != nil {
			ts.SamplesOut = res.Cleaned.Len()
		}

		if res.Err != nil {
			ts.Status = StatusFailed
			ts.Error = res.Err.Error()
		}

		s.Transects = append(s.Transects, ts)
	}

	return s
}

// Failed returns the number of transects that did not complete.
func (s Summary) Failed() int {
	n := 0

	for _, ts := range s.Transects {
		if ts.Status != StatusOK {
			n++
		}
	}

	return n
}

// Removed returns the outliers removed across all transects.
func (s Summary) Removed() int {
	n := 0
	for _, ts := range s.Transects {
		n += ts.Removed
	}

	return n
}
