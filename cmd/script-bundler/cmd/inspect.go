package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/script-bundler/internal/service/inspector"
)

// inspectCmd prints an artifact's manifest without executing anything.
var inspectCmd = &cobra.Command{
	Use:   "inspect [artifact]",
	Short: "Print the manifest of a built artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(command *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		options := &inspector.Options{
			ArtifactPath: args[0],
		}

		return inspector.Inspect(ctx, options, command.OutOrStdout())
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(inspectCmd)
}
