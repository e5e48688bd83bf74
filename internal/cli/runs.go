package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/example/runvault/internal/adapters/filesystem"
	"github.com/example/runvault/internal/models"
	"github.com/example/runvault/internal/wire"
)

// RunsCmd returns the runs command group for browsing the run index
func RunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse persisted runs",
		Long:  "List and inspect runs through the durable index, newest first",
	}
	cmd.AddCommand(runsListCmd())
	cmd.AddCommand(runsShowCmd())
	return cmd
}

func runsListCmd() *cobra.Command {
	var (
		candidate string
		profile   string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := wire.RunQueryService()
			ctx := context.Background()

			var rows []*models.RunRow
			var err error
			if profile != "" {
				rows, err = svc.ListRunsForProfile(ctx, candidate, profile, limit)
			} else {
				rows, err = svc.ListRuns(ctx, candidate, limit)
			}
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if len(rows) == 0 {
				fmt.Println("No runs found")
				return nil
			}

			fmt.Printf("\n%-20s %-25s %s\n", "RUN", "TIMESTAMP", "DIR")
			fmt.Println("────────────────────────────────────────────────────────────────")
			for _, row := range rows {
				fmt.Printf("%-20s %-25s %s\n", row.RunID, row.Timestamp, row.RunDir)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&candidate, "candidate", filesystem.DefaultCandidate, "candidate namespace")
	cmd.Flags().StringVar(&profile, "profile", "", "only runs that carry this profile")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs (0 = all)")

	return cmd
}

func runsShowCmd() *cobra.Command {
	var candidate string

	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one run's index document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := wire.RunQueryService().GetRun(context.Background(), candidate, args[0])
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			fmt.Printf("\nRun:       %s\n", row.RunID)
			fmt.Printf("Candidate: %s\n", row.Candidate)
			fmt.Printf("Timestamp: %s\n", row.Timestamp)
			fmt.Printf("Directory: %s\n", row.RunDir)

			var doc models.RunIndexDoc
			if err := json.Unmarshal([]byte(row.PayloadJSON), &doc); err == nil && len(doc.Artifacts) > 0 {
				keys := make([]string, 0, len(doc.Artifacts))
				for key := range doc.Artifacts {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				fmt.Println("Artifacts:")
				for _, key := range keys {
					fmt.Printf("  - %s: %s\n", key, doc.Artifacts[key])
				}
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&candidate, "candidate", filesystem.DefaultCandidate, "candidate namespace")

	return cmd
}
