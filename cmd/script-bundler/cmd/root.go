package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/script-bundler/internal/config"
	"github.com/oshokin/script-bundler/internal/logger"
	"github.com/oshokin/script-bundler/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the logging level for the invocation.
	logLevel string

	// rootCmd represents the base command of the bundler CLI.
	rootCmd = &cobra.Command{
		Use:   "script-bundler",
		Short: "Package interpreted programs into single self-running executables",
		Long: `script-bundler packs an entry script, its auxiliary files and runtime
hooks into one executable artifact. The artifact carries its own payload:
running it extracts the files into a per-run directory and executes the
interpreter on the entry script, so target machines need no separate
installation step beyond the interpreter itself.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
	}
)

// Execute runs the script-bundler CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&logLevel, "log-level", "l", "", "logging level (debug, info, warn, error, fatal)")
}
