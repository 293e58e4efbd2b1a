package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/script-bundler/internal/service/installer"
)

var (
	// installReleasePath is the release manifest the artifact is verified against.
	installReleasePath string
	// installRelaunch starts the installed executable after the swap.
	installRelaunch bool

	// installCmd replaces an installed executable with a new artifact.
	installCmd = &cobra.Command{
		Use:   "install [artifact] [target]",
		Short: "Install an artifact over an existing executable",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &installer.Options{
				ArtifactPath: args[0],
				TargetPath:   args[1],
				ReleasePath:  installReleasePath,
				Relaunch:     installRelaunch,
			}

			return installer.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	installCmd.Flags().
		StringVarP(&installReleasePath, "manifest", "m", "", "release manifest to verify against")
	installCmd.Flags().
		BoolVarP(&installRelaunch, "relaunch", "r", false, "start the installed executable after the swap")

	rootCmd.AddCommand(installCmd)
}
