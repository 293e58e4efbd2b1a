package inspector

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/oshokin/script-bundler/internal/bundle"
	"github.com/oshokin/script-bundler/internal/logger"
	"github.com/oshokin/script-bundler/internal/service/builder"
	"github.com/oshokin/script-bundler/internal/signing"
)

// ErrReleaseMismatch is returned when the artifact on disk does not match
// the checksum recorded in its release manifest.
var ErrReleaseMismatch = errors.New("artifact does not match its release manifest")

// Options contains inputs shared by the inspector operations.
type Options struct {
	// ArtifactPath is the artifact to operate on.
	ArtifactPath string
	// OutputDir is the extraction target (extract only).
	OutputDir string
	// ReleasePath is an optional release manifest to verify against
	// (verify only). Defaults to the manifest next to the artifact.
	ReleasePath string
	// KeyringPath enables signature verification of the release manifest
	// (verify only).
	KeyringPath string
	// SignaturePath is the detached signature of the release manifest
	// (verify only). Defaults to ReleasePath + ".asc".
	SignaturePath string
}

// Inspect prints a human-readable summary of the artifact to out.
func Inspect(ctx context.Context, opts *Options, out io.Writer) error {
	ctx = logger.WithName(ctx, "bundle-inspect")

	reader, err := bundle.Open(opts.ArtifactPath)
	if err != nil {
		return err
	}

	logger.DebugKV(ctx, "Opened artifact", "path", opts.ArtifactPath)

	manifest := reader.Manifest

	fmt.Fprintf(out, "Name:        %s\n", manifest.Name)
	fmt.Fprintf(out, "Version:     %s\n", manifest.Version)
	fmt.Fprintf(out, "Format:      %d\n", manifest.FormatVersion)
	fmt.Fprintf(out, "Entry:       %s\n", manifest.EntryScript)
	fmt.Fprintf(out, "Interpreter: %s", manifest.Interpreter)

	for _, arg := range manifest.InterpreterArgs {
		fmt.Fprintf(out, " %s", arg)
	}

	fmt.Fprintf(out, "\nConsole:     %t\n", manifest.Console)
	fmt.Fprintf(out, "Compressed:  %t\n", reader.Footer.Compressed)
	fmt.Fprintf(out, "Payload:     %d bytes\n", reader.Footer.PayloadSize)

	if len(manifest.RuntimeHooks) > 0 {
		fmt.Fprintf(out, "Hooks:\n")

		for _, hook := range manifest.RuntimeHooks {
			fmt.Fprintf(out, "  %s\n", hook)
		}
	}

	fmt.Fprintf(out, "Files:\n")

	table := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	for _, entry := range manifest.Files {
		fmt.Fprintf(table, "  %s\t%d\t%04o\t%s\n", entry.Path, entry.Size, entry.Mode, entry.Checksum)
	}

	return table.Flush()
}

// Extract unpacks the artifact's payload into OutputDir without running it.
func Extract(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "bundle-extract")

	reader, err := bundle.Open(opts.ArtifactPath)
	if err != nil {
		return err
	}

	if opts.OutputDir == "" {
		opts.OutputDir = reader.Manifest.Name
	}

	if err = os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	logger.InfoKV(ctx, "Extracting payload", "dir", opts.OutputDir)

	return reader.Extract(opts.OutputDir)
}

// Verify checks the artifact's integrity: footer checksum, every per-file
// checksum, and optionally the release manifest with its detached signature.
func Verify(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "bundle-verify")

	// Open already verifies the payload against the footer checksum.
	reader, err := bundle.Open(opts.ArtifactPath)
	if err != nil {
		return err
	}

	if err = reader.Verify(); err != nil {
		return err
	}

	logger.Info(ctx, "Payload and file checksums are valid")

	releasePath := opts.ReleasePath
	if releasePath == "" {
		releasePath = defaultReleasePath(opts.ArtifactPath, reader.Manifest.Name)
	}

	if _, statErr := os.Stat(releasePath); statErr != nil {
		if opts.ReleasePath == "" && opts.KeyringPath == "" {
			// No manifest requested and none found next to the artifact.
			return nil
		}

		return fmt.Errorf("read release manifest: %w", statErr)
	}

	if err = verifyRelease(ctx, opts, releasePath); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Artifact verified", "path", opts.ArtifactPath)

	return nil
}

// verifyRelease compares the artifact against the release manifest and
// checks the manifest's detached signature when a keyring is given.
func verifyRelease(ctx context.Context, opts *Options, releasePath string) error {
	release, err := builder.LoadRelease(releasePath)
	if err != nil {
		return err
	}

	artifactName := filepath.Base(opts.ArtifactPath)

	recorded, ok := release.Files[artifactName]
	if !ok {
		return fmt.Errorf("%s: %w", artifactName, ErrReleaseMismatch)
	}

	checksum, err := bundle.FileChecksum(opts.ArtifactPath)
	if err != nil {
		return err
	}

	if base64.StdEncoding.EncodeToString(checksum) != recorded {
		return fmt.Errorf("%s: %w", artifactName, ErrReleaseMismatch)
	}

	logger.Info(ctx, "Artifact matches its release manifest")

	if opts.KeyringPath == "" {
		return nil
	}

	signaturePath := opts.SignaturePath
	if signaturePath == "" {
		signaturePath = releasePath + ".asc"
	}

	if err = signing.VerifyFile(opts.KeyringPath, releasePath, signaturePath); err != nil {
		return err
	}

	logger.Info(ctx, "Release manifest signature is valid")

	return nil
}

// defaultReleasePath derives the release manifest path next to the artifact.
func defaultReleasePath(artifactPath, name string) string {
	return filepath.Join(filepath.Dir(artifactPath), name+builder.ReleaseManifestSuffix)
}
