package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/script-bundler/internal/service/inspector"
)

var (
	// verifyReleasePath is the release manifest to verify against.
	verifyReleasePath string
	// verifyKeyringPath enables signature verification.
	verifyKeyringPath string
	// verifySignaturePath is the detached signature of the release manifest.
	verifySignaturePath string

	// verifyCmd checks an artifact's integrity and optional signature.
	verifyCmd = &cobra.Command{
		Use:   "verify [artifact]",
		Short: "Verify an artifact's checksums and release signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &inspector.Options{
				ArtifactPath:  args[0],
				ReleasePath:   verifyReleasePath,
				KeyringPath:   verifyKeyringPath,
				SignaturePath: verifySignaturePath,
			}

			return inspector.Verify(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	verifyCmd.Flags().
		StringVarP(&verifyReleasePath, "manifest", "m", "", "release manifest to verify against")
	verifyCmd.Flags().
		StringVarP(&verifyKeyringPath, "keyring", "k", "", "keyring used to verify the release signature")
	verifyCmd.Flags().
		StringVarP(&verifySignaturePath, "signature", "s", "", "detached signature of the release manifest")

	rootCmd.AddCommand(verifyCmd)
}
