package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/bikeflow/app/plugins"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the metrics sinks and notifiers compiled into the binary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printJSON(cmd.OutOrStdout(), plugins.Available())
	},
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}
