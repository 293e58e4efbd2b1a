package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/script-bundler/internal/signing"
)

var (
	// signKeyPath is the armored private key used for signing.
	signKeyPath string
	// signOutputPath receives the detached signature.
	signOutputPath string

	// signCmd writes a detached signature for a release manifest.
	signCmd = &cobra.Command{
		Use:   "sign [release-manifest]",
		Short: "Sign a release manifest with a detached armored signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			outputPath := signOutputPath
			if outputPath == "" {
				outputPath = args[0] + ".asc"
			}

			return signing.SignFile(signKeyPath, args[0], outputPath)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	signCmd.Flags().
		StringVarP(&signKeyPath, "key", "k", "", "armored private key used for signing")
	signCmd.Flags().
		StringVarP(&signOutputPath, "output", "o", "", "signature path (defaults to the manifest path + .asc)")

	_ = signCmd.MarkFlagRequired("key")

	rootCmd.AddCommand(signCmd)
}
