package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/runvault/internal/wire"
)

// ValidateCmd returns the validate command for artifact contract checks
func ValidateCmd() *cobra.Command {
	var (
		candidate string
		runID     string
	)

	cmd := &cobra.Command{
		Use:   "validate [run-dir]",
		Short: "Validate a run's artifact documents against their contracts",
		Long: `Checks every well-known document in a run directory (index, summary,
health, availability, report) against both its typed contract and the
JSON schema. Pass a run directory, or locate the run with --candidate
and --run-id.

Examples:
  runvault validate ./runs/20260101
  runvault validate --candidate alice --run-id 20260101`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var dir string
			switch {
			case len(args) == 1:
				dir = args[0]
			case candidate != "" && runID != "":
				resolved, err := wire.Store().RunDir(candidate, runID)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					os.Exit(2)
				}
				dir = resolved
			default:
				fmt.Fprintln(os.Stderr, "error: pass a run directory or --candidate with --run-id")
				os.Exit(2)
			}

			issues, err := wire.Validator().RunDir(dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(2)
			}

			if len(issues) == 0 {
				fmt.Println(color.New(color.FgGreen).Sprint("PASS") + ": all documents valid")
				return
			}
			fmt.Printf("%s: %d issue(s)\n", color.New(color.FgRed).Sprint("FAIL"), len(issues))
			for _, issue := range issues {
				fmt.Println("- " + issue)
			}
			os.Exit(1)
		},
	}

	cmd.Flags().StringVar(&candidate, "candidate", "", "candidate namespace")
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier (with --candidate)")

	return cmd
}
