package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/script-bundler/internal/service/inspector"
)

var (
	// extractOutputDir is the extraction target directory.
	extractOutputDir string

	// extractCmd unpacks an artifact's payload without running it.
	extractCmd = &cobra.Command{
		Use:   "extract [artifact]",
		Short: "Unpack an artifact's payload into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &inspector.Options{
				ArtifactPath: args[0],
				OutputDir:    extractOutputDir,
			}

			return inspector.Extract(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	extractCmd.Flags().
		StringVarP(&extractOutputDir, "output", "o", "", "directory receiving the payload (defaults to the bundle name)")

	rootCmd.AddCommand(extractCmd)
}
