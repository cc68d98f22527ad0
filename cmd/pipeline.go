package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bikeflow/app"
	"github.com/kilianp07/bikeflow/pkg/export"
)

var exportPath string

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Batch pipeline commands",
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Rebuild the demand profile, forecast every station and publish suggestions",
	Args:  cobra.NoArgs,
	RunE:  runPipeline,
}

func init() {
	pipelineRunCmd.Flags().StringVar(&exportPath, "export", "", "write the published suggestions to a .csv or .json file")
	pipelineCmd.AddCommand(pipelineRunCmd)
	rootCmd.AddCommand(pipelineCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := app.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	sum, err := app.NewPipeline(cfg, st).Run(ctx)
	if err != nil {
		return err
	}
	if exportPath != "" {
		sugg, err := st.Suggestions(ctx)
		if err != nil {
			return err
		}
		f, err := os.Create(exportPath)
		if err != nil {
			return err
		}
		if err := export.Write(f, exportPath, sugg); err != nil {
			_ = f.Close()
			return fmt.Errorf("export: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return printJSON(cmd.OutOrStdout(), sum)
}
