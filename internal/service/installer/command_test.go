package installer

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/script-bundler/internal/bundle"
	"github.com/oshokin/script-bundler/internal/service/builder"
)

// installFixture writes a new artifact, its release manifest and an already
// installed target, returning their paths.
func installFixture(t *testing.T, recordChecksum bool) (string, string) {
	t.Helper()

	dir := t.TempDir()

	artifactPath := filepath.Join(dir, "sageodbc")
	require.NoError(t, os.WriteFile(artifactPath, []byte("NEW-ARTIFACT"), 0o755))

	files := map[string]string{}
	if recordChecksum {
		checksum, err := bundle.FileChecksum(artifactPath)
		require.NoError(t, err)

		files["sageodbc"] = base64.StdEncoding.EncodeToString(checksum)
	}

	require.NoError(t, builder.SaveRelease(
		filepath.Join(dir, "sageodbc"+builder.ReleaseManifestSuffix),
		&builder.Release{
			Version:  "2.0.0",
			Name:     "sageodbc",
			Artifact: "sageodbc",
			Files:    files,
		}))

	targetDir := t.TempDir()
	targetPath := filepath.Join(targetDir, "installed-sageodbc")
	require.NoError(t, os.WriteFile(targetPath, []byte("OLD-ARTIFACT"), 0o755))

	return artifactPath, targetPath
}

// TestRun_ReplacesTarget swaps the installed executable and drops the backup.
func TestRun_ReplacesTarget(t *testing.T) {
	t.Parallel()

	artifactPath, targetPath := installFixture(t, true)

	require.NoError(t, Run(context.Background(), &Options{
		ArtifactPath: artifactPath,
		TargetPath:   targetPath,
	}))

	installed, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	require.Equal(t, "NEW-ARTIFACT", string(installed))

	_, err = os.Stat(targetPath + ".old")
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_RejectsUnlistedArtifact refuses manifests without a checksum entry.
func TestRun_RejectsUnlistedArtifact(t *testing.T) {
	t.Parallel()

	artifactPath, targetPath := installFixture(t, false)

	err := Run(context.Background(), &Options{
		ArtifactPath: artifactPath,
		TargetPath:   targetPath,
	})
	require.ErrorIs(t, err, errNoChecksum)

	// The installed executable is untouched.
	installed, readErr := os.ReadFile(targetPath)
	require.NoError(t, readErr)
	require.Equal(t, "OLD-ARTIFACT", string(installed))
}

// TestRun_RejectsChecksumMismatch catches artifacts modified after release.
func TestRun_RejectsChecksumMismatch(t *testing.T) {
	t.Parallel()

	artifactPath, targetPath := installFixture(t, true)
	require.NoError(t, os.WriteFile(artifactPath, []byte("TAMPERED"), 0o755))

	err := Run(context.Background(), &Options{
		ArtifactPath: artifactPath,
		TargetPath:   targetPath,
	})
	require.Error(t, err)

	installed, readErr := os.ReadFile(targetPath)
	require.NoError(t, readErr)
	require.Equal(t, "OLD-ARTIFACT", string(installed))
}

// TestRun_MissingReleaseManifest fails before touching anything.
func TestRun_MissingReleaseManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	artifactPath := filepath.Join(dir, "sageodbc")
	require.NoError(t, os.WriteFile(artifactPath, []byte("NEW"), 0o755))

	err := Run(context.Background(), &Options{
		ArtifactPath: artifactPath,
		TargetPath:   filepath.Join(dir, "target"),
	})
	require.Error(t, err)
}
