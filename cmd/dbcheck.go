package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eyesight-qa/apiverify/internal/actions"
)

var dbCheckCmd = &cobra.Command{
	Use:   "db-check",
	Short: "Run the configured database validation checks",
	Long:  `Runs the read-only SQL checks from DB_CHECKS_FILE against the configured database and prints the results.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := actions.ValidateDB(cmd.Context(), Logger); err != nil {
			return fmt.Errorf("database validation failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCheckCmd)
}
