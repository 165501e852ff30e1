package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/shorefilter/pkg/config"
	"github.com/Sumatoshi-tech/shorefilter/pkg/pipeline"
)

const (
	stagesUse   = "stages"
	stagesShort = "List filter stages and their options"
)

// NewStagesCommand creates the stages command.
func NewStagesCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          stagesUse,
		Short:        stagesShort,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			return listStages(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file whose values are shown as defaults")

	return cmd
}

func listStages(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	params := cfg.Params()

	fmt.Fprintf(out, "Pipeline: %v\n\n", cfg.Pipeline.Stages)

	for _, name := range pipeline.StageNames() {
		desc, options, err := pipeline.Describe(name, params)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s: %s\n", name, desc)

		tbl := table.NewWriter()
		tbl.SetOutputMirror(out)
		tbl.SetStyle(table.StyleLight)
		tbl.AppendHeader(table.Row{"Key", "Type", "Value", "Description"})

		for _, opt := range options {
			tbl.AppendRow(table.Row{opt.Key, opt.Type, opt.FormatDefault(), opt.Description})
		}

		tbl.Render()
		fmt.Fprintln(out)
	}

	return nil
}
