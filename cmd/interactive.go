// Package cmd contains CLI command definitions
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/eyesight-qa/apiverify/internal/actions"
	"github.com/eyesight-qa/apiverify/pkg/interactive"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Launch interactive TUI mode",
	Long:  `Launches the interactive terminal interface for apiverify.`,
	Run: func(_ *cobra.Command, _ []string) {
		RunInteractiveTUI()
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

// RunInteractiveTUI loops the main menu until the user exits.
func RunInteractiveTUI() {
	fmt.Println("apiverify - Interactive Mode")
	fmt.Println("============================")
	fmt.Println()

	ctx := context.Background()

	for {
		options := []interactive.MenuOption{
			{
				Name:        "Show Config",
				Description: "Display current environment configuration",
				Action: func() error {
					if err := actions.ShowConfig(); err != nil {
						fmt.Printf("\n❌ Error: %v\n", err)
					}
					interactive.PauseForEnter()
					return nil
				},
			},
			{
				Name:        "Run Contract",
				Description: "Execute a contract file against the SUT",
				Action: func() error {
					path, err := interactive.AskString("Contract file path:", "contracts/contract.yaml")
					if err != nil {
						return nil
					}

					ok, runErr := actions.RunContract(ctx, Logger, path)
					if runErr != nil {
						fmt.Printf("\n❌ Error: %v\n", runErr)
					} else if !ok {
						fmt.Println("\n❌ Some checks did not pass.")
					} else {
						fmt.Println("\n✅ All checks passed!")
					}

					interactive.PauseForEnter()
					return nil
				},
			},
			{
				Name:        "Get Metric",
				Description: "Fetch a single metric from the SUT",
				Action: func() error {
					name, err := interactive.AskString("Metric name:", "")
					if err != nil || name == "" {
						return nil
					}

					if err := actions.GetMetric(ctx, Logger, name); err != nil {
						fmt.Printf("\n❌ Error: %v\n", err)
					}

					interactive.PauseForEnter()
					return nil
				},
			},
			{
				Name:        "Database Checks",
				Description: "Run the configured read-only SQL checks",
				Action: func() error {
					if err := actions.ValidateDB(ctx, Logger); err != nil {
						fmt.Printf("\n❌ Error: %v\n", err)
					}
					interactive.PauseForEnter()
					return nil
				},
			},
		}

		if err := interactive.ShowMainMenu(options); err != nil {
			if errors.Is(err, interactive.ErrExit) {
				fmt.Println("Goodbye!")
				return
			}
			log.Fatal(err)
		}

		fmt.Println()
	}
}
