package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/runvault/internal/ports/primary"
	"github.com/example/runvault/internal/wire"
)

// CanaryCmd returns the canary command for determinism checks
func CanaryCmd() *cobra.Command {
	var (
		configPath  string
		receiptPath string
	)

	cmd := &cobra.Command{
		Use:   "canary",
		Short: "Execute the pipeline twice against frozen inputs and assert zero drift",
		Long: `Runs the scenario's pipeline command twice into isolated state roots,
diffs the two resulting runs (hash manifests, identity diff, provider
availability, full comparison with run-id drift allowed), and persists a
JSON receipt into the left run.

Exit codes: 0 = pass, 1 = drift detected, 2 = execution error.

Examples:
  runvault canary --config ./canary.yaml
  runvault canary --config ./canary.yaml --receipt /srv/receipts/canary.json`,
		Run: func(cmd *cobra.Command, args []string) {
			result, err := wire.CanaryService().Run(context.Background(), primary.CanaryRequest{
				ConfigPath:  configPath,
				ReceiptPath: receiptPath,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(2)
			}

			fmt.Printf("left:  %s\n", result.LeftRunDir)
			fmt.Printf("right: %s\n", result.RightRunDir)
			if result.Status == "pass" {
				fmt.Println(color.New(color.FgGreen).Sprint("PASS") + ": no drift between executions")
				return
			}

			fmt.Printf("%s: %d issue(s)\n", color.New(color.FgRed).Sprint("FAIL"), len(result.Issues))
			for _, issue := range result.Issues {
				fmt.Println("- " + issue)
			}
			os.Exit(1)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the canary scenario YAML (required)")
	cmd.Flags().StringVar(&receiptPath, "receipt", "", "additionally write the receipt to this path")
	cmd.MarkFlagRequired("config")

	return cmd
}
