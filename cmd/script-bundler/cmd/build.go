package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/script-bundler/internal/service/builder"
)

var (
	// buildOutputDir receives the artifact and release manifest.
	buildOutputDir string
	// buildStubPath overrides the runtime stub location.
	buildStubPath string

	// buildCmd packs a descriptor into a single executable artifact.
	buildCmd = &cobra.Command{
		Use:   "build [descriptor]",
		Short: "Build a self-running artifact from a bundle descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &builder.Options{
				DescriptorPath: args[0],
				OutputDir:      buildOutputDir,
				StubPath:       buildStubPath,
				ConfigPath:     configPath,
			}

			return builder.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	buildCmd.Flags().
		StringVarP(&buildOutputDir, "output", "o", builder.DefaultOutputDir, "directory receiving the artifact")
	buildCmd.Flags().
		StringVarP(&buildStubPath, "stub", "s", "", "path to the runtime stub executable")

	rootCmd.AddCommand(buildCmd)
}
