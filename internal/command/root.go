// Package command implements the feedctl CLI.
package command

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the feedctl root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "feedctl",
		Short:         "Operate a feedback board: seed storage, tail the live feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		NewSeedCmd(),
		NewTailCmd(),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
