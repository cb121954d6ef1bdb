package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eyesight-qa/apiverify/internal/actions"
)

var runCmd = &cobra.Command{
	Use:   "run <contract.yaml>",
	Short: "Run a contract file against the configured SUT",
	Long: `Executes every check in the contract file, in order, against the system
under test. Writes the API call log, evidence manifest and run report when
REPORT_DIR or the individual path variables are set.

Exits non-zero when any check fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		log := Logger
		if verbose {
			log = newLogger(true)
		}

		ok, err := actions.RunContract(cmd.Context(), log, args[0])
		if err != nil {
			return fmt.Errorf("contract run failed: %w", err)
		}

		if !ok {
			// Results are already printed; signal failure without re-wrapping.
			os.Exit(1)
		}

		return nil
	},
}

func init() {
	runCmd.Flags().BoolP("verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(runCmd)
}
