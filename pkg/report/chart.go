package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/shorefilter/pkg/pipeline"
	"github.com/Sumatoshi-tech/shorefilter/pkg/timeseries"
)

const (
	chartDateLayout = "2006-01-02"
	chartWidth      = "100%"
	chartHeight     = "520px"
	lineWidth       = 2
	lineWidthThin   = 1
)

// ErrNoData is returned when a result has no raw series to plot.
var ErrNoData = errors.New("result has no raw series to plot")

// WriteChart renders an HTML line chart of the raw and cleaned positions of
// one transect, with the final Hampel band when one is available.
func WriteChart(w io.Writer, res pipeline.Result) error {
	if res.Raw == nil || res.Raw.Len() == 0 {
		return ErrNoData
	}

	dates := chartDates(res)
	labels := make([]string, len(dates))

	for i, d := range dates {
		labels[i] = d.Format(chartDateLayout)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Transect " + res.Transect,
			Subtitle: fmt.Sprintf("%d raw, %d kept", res.Raw.Len(), lenOf(res.Cleaned)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "8%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "date"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "cross-shore distance"}),
	)
	line.SetXAxis(labels)

	line.AddSeries("raw", alignedData(dates, res.Raw.Timestamps, res.Raw.Values),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidthThin}),
	)

	if res.Cleaned != nil {
		line.AddSeries("cleaned", alignedData(dates, res.Cleaned.Timestamps, res.Cleaned.Values),
			charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
		)
	}

	if res.Band != nil {
		dashed := opts.LineStyle{Width: lineWidthThin, Type: "dashed"}

		line.AddSeries("hampel lower", alignedData(dates, res.Band.Timestamps, res.Band.Lower),
			charts.WithLineStyleOpts(dashed))
		line.AddSeries("hampel upper", alignedData(dates, res.Band.Timestamps, res.Band.Upper),
			charts.WithLineStyleOpts(dashed))
	}

	err := line.Render(w)
	if err != nil {
		return fmt.Errorf("render chart for %s: %w", res.Transect, err)
	}

	return nil
}

// chartDates is the sorted union of every plotted timestamp.
func chartDates(res pipeline.Result) []time.Time {
	dates := slices.Clone(res.Raw.Timestamps)

	if res.Cleaned != nil {
		dates = append(dates, res.Cleaned.Timestamps...)
	}

	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

	return slices.CompactFunc(dates, func(a, b time.Time) bool { return a.Equal(b) })
}

// alignedData places values on the dates axis; dates without a finite value
// are left empty so the line shows a gap.
func alignedData(dates, ts []time.Time, values []float64) []opts.LineData {
	data := make([]opts.LineData, len(dates))
	j := 0

	for i, d := range dates {
		for j < len(ts) && ts[j].Before(d) {
			j++
		}

		if j < len(ts) && ts[j].Equal(d) && !math.IsNaN(values[j]) {
			data[i] = opts.LineData{Value: values[j]}

			continue
		}

		data[i] = opts.LineData{Value: "-"}
	}

	return data
}

func lenOf(s *timeseries.Series) int {
	if s == nil {
		return 0
	}

	return s.Len()
}
