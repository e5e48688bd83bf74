package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/runvault/internal/ports/primary"
	"github.com/example/runvault/internal/wire"
)

// Comparator exit codes.
const (
	compareExitMatch     = 0
	compareExitMismatch  = 1
	compareExitLoadError = 2
)

// CompareCmd returns the compare command for cross-run drift detection
func CompareCmd() *cobra.Command {
	var (
		allowRunIDDrift bool
		repoRoot        string
	)

	cmd := &cobra.Command{
		Use:   "compare [left-run-dir] [right-run-dir]",
		Short: "Normalize and diff two runs' artifact sets",
		Long: `Compares two run directories after stripping volatile fields: schema
versions, run contracts, the core documents, and every ranked output.
An empty issue list means the runs are semantically equivalent.

Relative run directories resolve against --repo-root when given.

Exit codes: 0 = match, 1 = mismatch, 2 = load error.

Examples:
  runvault compare ./runs/20260101 ./runs/20260102
  runvault compare left right --allow-run-id-drift --repo-root /srv/state`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			leftDir := resolveAgainst(repoRoot, args[0])
			rightDir := resolveAgainst(repoRoot, args[1])

			result, err := wire.CompareService().Compare(context.Background(), primary.CompareRequest{
				LeftDir:         leftDir,
				RightDir:        rightDir,
				AllowRunIDDrift: allowRunIDDrift,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(compareExitLoadError)
			}

			if len(result.Issues) == 0 {
				fmt.Println(color.New(color.FgGreen).Sprint("PASS") + ": runs are equivalent")
				return
			}

			fmt.Printf("%s: %d issue(s)\n", color.New(color.FgRed).Sprint("FAIL"), len(result.Issues))
			for _, issue := range result.Issues {
				fmt.Println("- " + issue)
			}
			os.Exit(compareExitMismatch)
		},
	}

	cmd.Flags().BoolVar(&allowRunIDDrift, "allow-run-id-drift", false, "tolerate differing run identifiers between the two runs")
	cmd.Flags().StringVar(&repoRoot, "repo-root", "", "base directory for relative run paths")

	return cmd
}

func resolveAgainst(root, path string) string {
	if root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
