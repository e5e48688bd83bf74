package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/runvault/internal/ports/primary"
	"github.com/example/runvault/internal/wire"
)

// Verifier exit codes. The exit code is the sole machine-readable signal in
// non-JSON mode.
const (
	verifyExitPass      = 0
	verifyExitFail      = 2
	verifyExitLoadError = 3
)

// VerifyCmd returns the verify command for replay verification
func VerifyCmd() *cobra.Command {
	var (
		reportPath string
		runDir     string
		candidate  string
		runID      string
		profile    string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute artifact digests against a run's manifest",
		Long: `Recomputes the SHA-256 digest of every artifact a run's manifest claims
and compares them against the recorded values. The manifest is never
adjusted, only compared.

Locate the run with exactly one of --run-report, --run-dir, or
--candidate plus --run-id.

Exit codes: 0 = pass, 2 = fail (missing or mismatched), 3 = load error.

Examples:
  runvault verify --run-dir /srv/state/candidates/alice/runs/20260101
  runvault verify --candidate alice --run-id 20260101 --profile cs
  runvault verify --run-report ./run_report.json --json`,
		Run: func(cmd *cobra.Command, args []string) {
			result, err := wire.VerifyService().Verify(context.Background(), primary.VerifyRequest{
				ReportPath: reportPath,
				RunDir:     runDir,
				Candidate:  candidate,
				RunID:      runID,
				Profile:    profile,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(verifyExitLoadError)
			}

			if asJSON {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					os.Exit(verifyExitLoadError)
				}
				fmt.Println(string(data))
			} else {
				for _, line := range result.Lines {
					fmt.Println(line)
				}
				if result.OK {
					fmt.Println(color.New(color.FgGreen).Sprint("PASS") + ": all artifacts verified")
				} else {
					fmt.Println(color.New(color.FgRed).Sprint("FAIL") + ": " + result.Reason)
				}
			}

			if !result.OK {
				os.Exit(verifyExitFail)
			}
		},
	}

	cmd.Flags().StringVar(&reportPath, "run-report", "", "path to a run_report.json")
	cmd.Flags().StringVar(&runDir, "run-dir", "", "path to a run directory")
	cmd.Flags().StringVar(&candidate, "candidate", "", "candidate namespace")
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier (with --candidate)")
	cmd.Flags().StringVar(&profile, "profile", "", "only verify artifacts whose logical key carries this profile")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the structured result instead of the line report")

	return cmd
}
