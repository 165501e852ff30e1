// Package commands implements CLI command handlers for shorefilter.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/shorefilter/pkg/config"
	"github.com/Sumatoshi-tech/shorefilter/pkg/observability"
	"github.com/Sumatoshi-tech/shorefilter/pkg/pipeline"
	"github.com/Sumatoshi-tech/shorefilter/pkg/report"
	"github.com/Sumatoshi-tech/shorefilter/pkg/timeseries"
	"github.com/Sumatoshi-tech/shorefilter/pkg/version"
)

const (
	filterUse   = "filter <transect_time_series.csv>"
	filterShort = "Remove outliers from shoreline transect time series"
	filterLong  = `Run the configured filter stages over every transect of a
transect_time_series CSV (or the ones selected with --transect) and print a
summary. Cleaned series are written to --output-dir as <transect>.csv.

Stages and their parameters come from .shorefilter.yaml, SHOREFILTER_*
environment variables and the flags below, in increasing precedence.`

	csvExt   = ".csv"
	lz4Ext   = ".lz4"
	chartExt = ".html"

	dirPerm = 0o755
)

var (
	// ErrTransectsFailed is returned when at least one transect could not be cleaned.
	ErrTransectsFailed = errors.New("some transects failed")
	// ErrPlotNeedsOutputDir is returned for --plot without --output-dir.
	ErrPlotNeedsOutputDir = errors.New("--plot requires --output-dir")
)

// FilterCommand holds the flags of the filter command.
type FilterCommand struct {
	configPath  string
	transects   []string
	stages      []string
	outputDir   string
	format      string
	metricsFile string
	workers     int
	plot        bool
	compress    bool
}

// NewFilterCommand creates the filter command.
func NewFilterCommand() *cobra.Command {
	fc := &FilterCommand{}

	cmd := &cobra.Command{
		Use:          filterUse,
		Short:        filterShort,
		Long:         filterLong,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         fc.run,
	}

	cmd.Flags().StringVarP(&fc.configPath, "config", "c", "", "Config file (default: .shorefilter.yaml in CWD or $HOME)")
	cmd.Flags().StringArrayVarP(&fc.transects, "transect", "t", nil, "Transect id to clean (repeatable; default: all)")
	cmd.Flags().StringSliceVarP(&fc.stages, "stages", "s", nil,
		"Stage order, overriding pipeline.stages (see `shorefilter stages`)")
	cmd.Flags().StringVarP(&fc.outputDir, "output-dir", "o", "", "Directory for cleaned CSV files (empty = do not write)")
	cmd.Flags().StringVarP(&fc.format, "format", "f", report.FormatTable,
		"Summary format: "+strings.Join(report.Formats(), ", "))
	cmd.Flags().StringVar(&fc.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	cmd.Flags().IntVarP(&fc.workers, "workers", "w", 0, "Transects cleaned in parallel (0 = CPU count)")
	cmd.Flags().BoolVar(&fc.plot, "plot", false, "Write an HTML chart per transect next to the cleaned CSV")
	cmd.Flags().BoolVar(&fc.compress, "compress", false, "Write cleaned series lz4-compressed (.csv.lz4)")

	return cmd
}

func (fc *FilterCommand) run(cmd *cobra.Command, args []string) (err error) {
	input := args[0]

	cfg, err := fc.loadConfig(cmd)
	if err != nil {
		return err
	}

	if fc.plot && fc.outputDir == "" {
		return ErrPlotNeedsOutputDir
	}

	providers, err := initObservability(cmd, cfg)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, providers.Shutdown(context.Background()))
	}()

	series, err := fc.readSeries(input)
	if err != nil {
		return err
	}

	metrics, err := observability.NewFilterMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	stages, err := pipeline.BuildStages(cfg.Pipeline.Stages, cfg.Params())
	if err != nil {
		return err
	}

	p, err := pipeline.New(stages,
		pipeline.WithLogger(providers.Logger),
		pipeline.WithTracer(providers.Tracer),
		pipeline.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	runID := report.NewRunID()
	ctx := observability.WithRunID(cmd.Context(), runID)
	started := time.Now()

	providers.Logger.InfoContext(ctx, "run started",
		"input", input, "transects", len(series), "stages", p.StageNames(), "workers", cfg.Pipeline.Workers)

	results, err := p.RunBatch(ctx, series, cfg.Pipeline.Workers)
	if err != nil {
		return fmt.Errorf("run batch: %w", err)
	}

	outputs, err := fc.writeOutputs(results)
	if err != nil {
		return err
	}

	summary := report.NewSummary(runID, input, p.StageNames(), results, outputs, started, time.Since(started))

	err = report.Write(cmd.OutOrStdout(), summary, fc.format)
	if err != nil {
		return err
	}

	if path := cfg.Telemetry.MetricsFile; path != "" {
		err = observability.WriteMetricsFile(path, providers.Registry)
		if err != nil {
			return err
		}
	}

	providers.Logger.InfoContext(ctx, "run finished",
		"transects", len(results), "failed", summary.Failed(), "removed", summary.Removed())

	if failed := summary.Failed(); failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrTransectsFailed, failed, len(results))
	}

	return nil
}

// loadConfig reads the config and lays the command line flags over it.
func (fc *FilterCommand) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(fc.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()

	if flags.Changed("workers") {
		cfg.Pipeline.Workers = fc.workers
	}

	if flags.Changed("stages") {
		cfg.Pipeline.Stages = fc.stages
	}

	if flags.Changed("metrics-file") {
		cfg.Telemetry.MetricsFile = fc.metricsFile
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate flags: %w", err)
	}

	return cfg, nil
}

func (fc *FilterCommand) readSeries(input string) ([]*timeseries.Series, error) {
	table, err := timeseries.ReadTransectFile(input)
	if err != nil {
		return nil, err
	}

	ids := fc.transects
	if len(ids) == 0 {
		ids = table.Transects
	}

	series := make([]*timeseries.Series, 0, len(ids))

	for _, id := range ids {
		s, seriesErr := table.Series(id)
		if seriesErr != nil {
			return nil, fmt.Errorf("%s: %w", input, seriesErr)
		}

		series = append(series, s)
	}

	return series, nil
}

// writeOutputs writes every cleaned series, and its chart with --plot, and
// returns the CSV path per transect.
func (fc *FilterCommand) writeOutputs(results []pipeline.Result) (map[string]string, error) {
	if fc.outputDir == "" {
		return nil, nil
	}

	err := os.MkdirAll(fc.outputDir, dirPerm)
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	outputs := make(map[string]string, len(results))

	for _, res := range results {
		if res.Err != nil {
			continue
		}

		base := filepath.Join(fc.outputDir, fileName(res.Transect))

		path := base + csvExt
		if fc.compress {
			path += lz4Ext
		}

		err = res.Cleaned.WriteFile(path)
		if err != nil {
			return nil, err
		}

		outputs[res.Transect] = path

		if fc.plot {
			err = writeChart(base+chartExt, res)
			if err != nil {
				return nil, err
			}
		}
	}

	return outputs, nil
}

func writeChart(path string, res pipeline.Result) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer func() {
		err = errors.Join(err, file.Close())
	}()

	return report.WriteChart(file, res)
}

var fileNameReplacer = strings.NewReplacer("/", "_", "\\", "_", " ", "_")

// fileName turns a transect id into a safe file name.
func fileName(transect string) string {
	return fileNameReplacer.Replace(transect)
}

// initObservability builds the telemetry providers; --verbose and --quiet
// override the configured log level and records go to the command's stderr.
func initObservability(cmd *cobra.Command, cfg *config.Config) (observability.Providers, error) {
	obsCfg, err := cfg.Observability()
	if err != nil {
		return observability.Providers{}, err
	}

	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = observability.ModeCLI
	obsCfg.LogOutput = cmd.ErrOrStderr()

	switch {
	case boolFlag(cmd, "quiet"):
		obsCfg.LogLevel = slog.LevelWarn
	case boolFlag(cmd, "verbose"):
		obsCfg.LogLevel = slog.LevelDebug
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return observability.Providers{}, fmt.Errorf("init observability: %w", err)
	}

	return providers, nil
}

// boolFlag reads a possibly inherited bool flag; missing flags read as false.
func boolFlag(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		f = cmd.InheritedFlags().Lookup(name)
	}

	return f != nil && f.Value.String() == "true"
}
