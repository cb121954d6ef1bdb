package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eyesight-qa/apiverify/internal/actions"
)

var metricCmd = &cobra.Command{
	Use:   "metric <name>",
	Short: "Fetch a single metric from the configured SUT",
	Long:  `Resolves one metric through the configured adapter (SUT_MODE=dict or api) and prints its value.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := actions.GetMetric(cmd.Context(), Logger, args[0]); err != nil {
			return fmt.Errorf("failed to get metric: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metricCmd)
}
