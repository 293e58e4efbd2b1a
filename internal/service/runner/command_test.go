package runner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/script-bundler/internal/bundle"
)

// makeArtifact packs shell scripts into a throwaway artifact so the tests
// can exercise the full open-extract-execute path without a real build.
func makeArtifact(t *testing.T, hooks []string, files map[string]string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("tests drive /bin/sh scripts")
	}

	dir := t.TempDir()
	inputs := make([]bundle.Input, 0, len(files))

	for payloadPath, contents := range files {
		source := filepath.Join(dir, strings.ReplaceAll(payloadPath, "/", "_"))
		require.NoError(t, os.WriteFile(source, []byte(contents), 0o755))
		inputs = append(inputs, bundle.Input{PayloadPath: payloadPath, SourcePath: source})
	}

	payload, err := bundle.BuildPayload(&bundle.Spec{
		Name:         "runnable",
		Version:      "0.0.0",
		EntryScript:  "app/main.sh",
		Interpreter:  "/bin/sh",
		Console:      true,
		RuntimeHooks: hooks,
		Inputs:       inputs,
		Compress:     true,
	})
	require.NoError(t, err)

	artifactPath := filepath.Join(dir, "runnable")
	require.NoError(t, os.WriteFile(artifactPath, []byte("STUB"), 0o755))
	require.NoError(t, bundle.AppendPayload(artifactPath, payload))

	return artifactPath
}

// TestRun_PassesArgumentsAndEnvironment checks argv pass-through and the
// BUNDLE_* variables visible to the entry script.
func TestRun_PassesArgumentsAndEnvironment(t *testing.T) {
	t.Parallel()

	artifactPath := makeArtifact(t, nil, map[string]string{
		"app/main.sh": "printf '%s %s %s' \"$2\" \"$BUNDLE_NAME\" \"$BUNDLE_DIR\" > \"$1\"\n",
	})

	outPath := filepath.Join(t.TempDir(), "out")

	code, err := Run(context.Background(), &Options{
		ArtifactPath: artifactPath,
		Args:         []string{outPath, "alpha"},
	})
	require.NoError(t, err)
	require.Zero(t, code)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)

	fields := strings.Fields(string(out))
	require.Len(t, fields, 3)
	require.Equal(t, "alpha", fields[0])
	require.Equal(t, "runnable", fields[1])

	// The run directory is removed once the program exits.
	_, err = os.Stat(fields[2])
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_PropagatesExitCode relays the script's own exit status.
func TestRun_PropagatesExitCode(t *testing.T) {
	t.Parallel()

	artifactPath := makeArtifact(t, nil, map[string]string{
		"app/main.sh": "exit 7\n",
	})

	code, err := Run(context.Background(), &Options{ArtifactPath: artifactPath})
	require.NoError(t, err)
	require.Equal(t, 7, code)
}

// TestRun_HooksRunInOrderBeforeEntry appends hook markers to a shared file.
func TestRun_HooksRunInOrderBeforeEntry(t *testing.T) {
	artifactPath := makeArtifact(t,
		[]string{"hooks/first.sh", "hooks/second.sh"},
		map[string]string{
			"hooks/first.sh":  "printf first, >> \"$TRACE\"\n",
			"hooks/second.sh": "printf second, >> \"$TRACE\"\n",
			"app/main.sh":     "printf entry >> \"$TRACE\"\n",
		})

	tracePath := filepath.Join(t.TempDir(), "trace")
	t.Setenv("TRACE", tracePath)

	code, err := Run(context.Background(), &Options{ArtifactPath: artifactPath})
	require.NoError(t, err)
	require.Zero(t, code)

	trace, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	require.Equal(t, "first,second,entry", string(trace))
}

// TestRun_FailingHookAbortsLaunch keeps the entry script from running.
func TestRun_FailingHookAbortsLaunch(t *testing.T) {
	artifactPath := makeArtifact(t,
		[]string{"hooks/guard.sh"},
		map[string]string{
			"hooks/guard.sh": "exit 1\n",
			"app/main.sh":    "printf entry >> \"$TRACE\"\n",
		})

	tracePath := filepath.Join(t.TempDir(), "trace")
	t.Setenv("TRACE", tracePath)

	code, err := Run(context.Background(), &Options{ArtifactPath: artifactPath})
	require.ErrorIs(t, err, errHookFailed)
	require.Equal(t, 1, code)

	_, err = os.Stat(tracePath)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_RejectsPlainExecutable refuses files without a bundle footer.
func TestRun_RejectsPlainExecutable(t *testing.T) {
	t.Parallel()

	plainPath := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(plainPath, []byte("just a file"), 0o755))

	code, err := Run(context.Background(), &Options{ArtifactPath: plainPath})
	require.ErrorIs(t, err, bundle.ErrNotABundle)
	require.Equal(t, 1, code)
}
