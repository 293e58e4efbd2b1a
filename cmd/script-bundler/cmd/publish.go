package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/script-bundler/internal/service/publisher"
)

var (
	// publishReleasePath is the release manifest to upload.
	publishReleasePath string
	// publishSignaturePath is an optional detached signature to upload.
	publishSignaturePath string

	// publishCmd uploads a release to object storage.
	publishCmd = &cobra.Command{
		Use:   "publish [artifact]",
		Short: "Upload an artifact and its release manifest to object storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &publisher.Options{
				ArtifactPath:  args[0],
				ReleasePath:   publishReleasePath,
				SignaturePath: publishSignaturePath,
				ConfigPath:    configPath,
			}

			return publisher.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	publishCmd.Flags().
		StringVarP(&publishReleasePath, "manifest", "m", "", "release manifest to upload")
	publishCmd.Flags().
		StringVarP(&publishSignaturePath, "signature", "s", "", "detached signature to upload")

	rootCmd.AddCommand(publishCmd)
}
