package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/runvault/internal/cli"
	"github.com/example/runvault/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "runvault",
		Short:   "runvault - run artifact store, index, and replay verifier",
		Version: version.String(),
		Long: `runvault persists pipeline run artifacts, indexes them for fast lookup,
and verifies byte-for-byte that a run's recorded outputs are reproducible
and untampered.`,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.RunsCmd())
	rootCmd.AddCommand(cli.IndexCmd())
	rootCmd.AddCommand(cli.VerifyCmd())
	rootCmd.AddCommand(cli.CompareCmd())
	rootCmd.AddCommand(cli.CanaryCmd())
	rootCmd.AddCommand(cli.ValidateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
