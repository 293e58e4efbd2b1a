package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/script-bundler/internal/bundle"
	"github.com/oshokin/script-bundler/internal/service/builder"
	"github.com/oshokin/script-bundler/internal/service/inspector"
	"github.com/oshokin/script-bundler/internal/service/installer"
	"github.com/oshokin/script-bundler/internal/service/runner"
)

// buildProject builds a shell-interpreted bundle with a hook and a data
// file through the real build path, returning the artifact path.
func buildProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.sh"),
		[]byte("#!/bin/sh\ncat \"$BUNDLE_DIR/data/greeting.txt\" > \"$1\"\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greeting.txt"),
		[]byte("hello from the payload"), 0o644))

	hooksDir := filepath.Join(dir, "hooks")
	require.NoError(t, os.MkdirAll(hooksDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(hooksDir, "warmup.sh"),
		[]byte("exit 0\n"), 0o755))

	stubPath := filepath.Join(dir, "stub")
	require.NoError(t, os.WriteFile(stubPath, []byte("STUB-BYTES"), 0o755))

	descriptorPath := filepath.Join(dir, "bundle.yaml")
	require.NoError(t, os.WriteFile(descriptorPath, []byte(`
entry_script: report.sh
bundled_data:
  - source: greeting.txt
    destination: data/greeting.txt
hook_paths:
  - hooks
runtime_hooks:
  - warmup.sh
output:
  name: reporter
`), 0o600))

	outputDir := t.TempDir()
	require.NoError(t, builder.Run(context.Background(), &builder.Options{
		DescriptorPath: descriptorPath,
		OutputDir:      outputDir,
		StubPath:       stubPath,
	}))

	release, err := builder.LoadRelease(filepath.Join(outputDir, "reporter"+builder.ReleaseManifestSuffix))
	require.NoError(t, err)

	return filepath.Join(outputDir, release.Artifact)
}

// TestBundleLifecycle walks one artifact through verify, extract and run.
func TestBundleLifecycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("the project uses /bin/sh as its interpreter")
	}

	t.Parallel()

	artifactPath := buildProject(t)

	// The artifact verifies against its footer, manifest and release file.
	require.NoError(t, inspector.Verify(context.Background(), &inspector.Options{
		ArtifactPath: artifactPath,
	}))

	// Extraction exposes the payload without executing it.
	extractDir := t.TempDir()
	require.NoError(t, inspector.Extract(context.Background(), &inspector.Options{
		ArtifactPath: artifactPath,
		OutputDir:    extractDir,
	}))

	greeting, err := os.ReadFile(filepath.Join(extractDir, "data", "greeting.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello from the payload", string(greeting))

	// Running the artifact executes the hook and then the entry script.
	outPath := filepath.Join(t.TempDir(), "out")
	code, err := runner.Run(context.Background(), &runner.Options{
		ArtifactPath: artifactPath,
		Args:         []string{outPath},
	})
	require.NoError(t, err)
	require.Zero(t, code)

	report, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "hello from the payload", string(report))
}

// TestBundleLifecycle_InstallOverPrevious upgrades an installed artifact.
func TestBundleLifecycle_InstallOverPrevious(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("the project uses /bin/sh as its interpreter")
	}

	t.Parallel()

	artifactPath := buildProject(t)

	installed := filepath.Join(t.TempDir(), "reporter")
	require.NoError(t, os.WriteFile(installed, []byte("previous install"), 0o755))

	require.NoError(t, installer.Run(context.Background(), &installer.Options{
		ArtifactPath: artifactPath,
		TargetPath:   installed,
	}))

	// The installed copy is the new artifact and still runs.
	reader, err := bundle.Open(installed)
	require.NoError(t, err)
	require.Equal(t, "reporter", reader.Manifest.Name)

	outPath := filepath.Join(t.TempDir(), "out")
	code, err := runner.Run(context.Background(), &runner.Options{
		ArtifactPath: installed,
		Args:         []string{outPath},
	})
	require.NoError(t, err)
	require.Zero(t, code)
}
