package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown report format")

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatTable, FormatJSON, FormatYAML}
}

// Write renders s to w in the given format.
func Write(w io.Writer, s Summary, format string) error {
	switch strings.ToLower(format) {
	case FormatTable, "":
		return WriteTable(w, s)
	case FormatJSON:
		return WriteJSON(w, s)
	case FormatYAML:
		return WriteYAML(w, s)
	default:
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
	}
}

// WriteJSON writes s as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(s)
	if err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}

	return nil
}

// WriteYAML writes s as YAML.
func WriteYAML(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(s)
	if err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("flush yaml report: %w", err)
	}

	return nil
}

// WriteTable writes a per-transect, per-stage table followed by a one-line
// status.
func WriteTable(w io.Writer, s Summary) error {
	fmt.Fprintf(w, "run %s  input %s  stages %s\n", s.RunID, s.Input, strings.Join(s.Stages, " -> "))

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Header = text.FormatDefault
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.AppendHeader(table.Row{"Transect", "Stage", "In", "Out", "Removed", "Iter", "State", "Time"})

	for _, ts := range s.Transects {
		if ts.Status != StatusOK {
			tbl.AppendRow(table.Row{
				ts.Transect, color.New(color.FgRed).Sprint(StatusFailed),
				humanize.Comma(int64(ts.SamplesIn)), "", "", "", "", ts.Error,
			})

			continue
		}

		for _, st := range ts.Stages {
			tbl.AppendRow(table.Row{
				ts.Transect, st.Stage,
				humanize.Comma(int64(st.SamplesIn)),
				humanize.Comma(int64(st.SamplesOut)),
				humanize.Comma(int64(st.Removed)),
				st.Iterations, st.State, formatDuration(st.Duration),
			})
		}

		tbl.AppendSeparator()
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d transects", len(s.Transects)), "", "", "",
		humanize.Comma(int64(s.Removed())), "", "", formatDuration(s.Duration),
	})
	tbl.Render()

	if failed := s.Failed(); failed > 0 {
		color.New(color.FgRed).Fprintf(w, "%d of %d transects failed\n", failed, len(s.Transects))
	} else {
		color.New(color.FgGreen).Fprintf(w, "all %d transects cleaned\n", len(s.Transects))
	}

	return nil
}

func formatDuration(d time.Duration) string {
	return humanize.SIWithDigits(d.Seconds(), 1, "s")
}
