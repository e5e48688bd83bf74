package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/runvault/internal/config"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var (
		stateRoot        string
		defaultCandidate string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a runvault configuration in the current directory",
		Long:  `Creates .runvault/config.json pointing at the run store's state root.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to determine working directory: %w", err)
			}

			if stateRoot == "" {
				stateRoot, err = config.DefaultStateRoot()
				if err != nil {
					return err
				}
			}
			if err := os.MkdirAll(stateRoot, 0755); err != nil {
				return fmt.Errorf("failed to create state root: %w", err)
			}

			cfg := &config.Config{
				Version:          config.ConfigVersion,
				StateRoot:        stateRoot,
				DefaultCandidate: defaultCandidate,
			}
			if err := config.SaveConfig(cwd, cfg); err != nil {
				return err
			}

			fmt.Printf("✓ Config written to %s/.runvault/config.json\n", cwd)
			fmt.Printf("✓ State root: %s\n", stateRoot)
			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  runvault index rebuild --candidate default")
			fmt.Println("  runvault runs list")

			return nil
		},
	}

	cmd.Flags().StringVar(&stateRoot, "state-root", "", "run store root (default ~/.runvault/state)")
	cmd.Flags().StringVar(&defaultCandidate, "default-candidate", "", "candidate used when none is given")

	return cmd
}
