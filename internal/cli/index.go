package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/runvault/internal/adapters/filesystem"
	"github.com/example/runvault/internal/wire"
)

// IndexCmd returns the index command group
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the durable run index",
	}
	cmd.AddCommand(indexRebuildCmd())
	return cmd
}

func indexRebuildCmd() *cobra.Command {
	var candidate string

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rescan the filesystem and atomically replace the run index",
		Long: `Performs a full scan of every run directory under the candidate and
writes a fresh index, replacing the live one atomically. Readers never
observe a partially-rebuilt index. The index is a cache; the run
directories stay authoritative.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := wire.RunQueryService().RebuildIndex(context.Background(), candidate)
			if err != nil {
				return fmt.Errorf("failed to rebuild index: %w", err)
			}
			fmt.Printf("✓ Indexed %d run(s) for %s\n", count, candidate)
			return nil
		},
	}

	cmd.Flags().StringVar(&candidate, "candidate", filesystem.DefaultCandidate, "candidate namespace")

	return cmd
}
