package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/bikeflow/app"
	"github.com/kilianp07/bikeflow/config"
	"github.com/kilianp07/bikeflow/infra/ingest"
	"github.com/kilianp07/bikeflow/infra/logger"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Import CSV exports into the configured store",
}

var loadTripsCmd = &cobra.Command{
	Use:   "trips <csv>...",
	Short: "Import trip history files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLoadTrips,
}

var loadInventoryCmd = &cobra.Command{
	Use:   "inventory <csv>",
	Short: "Replace live station inventory from a status export",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoadInventory,
}

func init() {
	loadCmd.AddCommand(loadTripsCmd, loadInventoryCmd)
	rootCmd.AddCommand(loadCmd)
}

func newReader(cfg config.IngestConfig) (ingest.Reader, error) {
	loc, err := cfg.Location()
	if err != nil {
		return ingest.Reader{}, err
	}
	return ingest.Reader{Location: loc, Log: logger.New("ingest")}, nil
}

func runLoadTrips(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reader, err := newReader(cfg.Ingest)
	if err != nil {
		return err
	}
	st, err := app.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	sum, err := ingest.LoadTripFiles(ctx, st, args, reader, cfg.Ingest.BatchSize)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), sum)
}

func runLoadInventory(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reader, err := newReader(cfg.Ingest)
	if err != nil {
		return err
	}
	st, err := app.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	batch, err := ingest.LoadInventoryFile(ctx, st, args[0], reader)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]int{
		"rows": batch.Rows, "skipped": batch.Skipped, "snapshots": len(batch.Snapshots), "stations": len(batch.Stations),
	})
}
