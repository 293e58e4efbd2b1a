package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeDescriptor writes a descriptor YAML plus its referenced files into dir.
func writeDescriptor(t *testing.T, dir, contents string) string {
	t.Helper()

	path := filepath.Join(dir, "bundle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

// TestLoad_DefaultsAndRelativePaths checks defaults for the output block and
// that relative inputs resolve against the descriptor's directory.
func TestLoad_DefaultsAndRelativePaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cli.py"), []byte("#!/usr/bin/env python3\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cacert.pem"), []byte("certs"), 0o600))

	path := writeDescriptor(t, dir, `
entry_script: cli.py
bundled_data:
  - source: cacert.pem
output:
  name: sageodbc
`)

	d, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, "cli.py"), d.EntryScript)
	require.Equal(t, filepath.Join(dir, "cacert.pem"), d.BundledData[0].Source)
	// Destination defaults to the base name at the artifact root.
	require.Equal(t, "cacert.pem", d.BundledData[0].Destination)

	// Documented defaults.
	require.True(t, d.Output.Console)
	require.True(t, d.Output.Compress)
	require.False(t, d.Output.StripSymbols)
}

// TestLoad_ExplicitFalseSticks ensures console: false survives defaulting.
func TestLoad_ExplicitFalseSticks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cli.py"), []byte("print()\n"), 0o600))

	path := writeDescriptor(t, dir, `
entry_script: cli.py
output:
  name: sageodbc
  console: false
  compress: false
`)

	d, err := Load(path)
	require.NoError(t, err)
	require.False(t, d.Output.Console)
	require.False(t, d.Output.Compress)
}

// TestLoad_MissingEntryPoint verifies the fatal error for an absent entry script.
func TestLoad_MissingEntryPoint(t *testing.T) {
	t.Parallel()

	path := writeDescriptor(t, t.TempDir(), `
entry_script: nowhere.py
output:
  name: sageodbc
`)

	_, err := Load(path)
	require.ErrorIs(t, err, ErrMissingEntryPoint)
}

// TestLoad_MissingDataFile verifies the fatal error for an absent bundled data source.
func TestLoad_MissingDataFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cli.py"), []byte("print()\n"), 0o600))

	path := writeDescriptor(t, dir, `
entry_script: cli.py
bundled_data:
  - source: cacert.pem
output:
  name: sageodbc
`)

	_, err := Load(path)
	require.ErrorIs(t, err, ErrMissingDataFile)
}

// TestLoad_NameRequired verifies that an empty output name fails validation.
func TestLoad_NameRequired(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cli.py"), []byte("print()\n"), 0o600))

	path := writeDescriptor(t, dir, `
entry_script: cli.py
`)

	_, err := Load(path)
	require.ErrorIs(t, err, errNameRequired)
}

// TestValidateResources verifies the resource check used on embedding platforms.
func TestValidateResources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	d := &Descriptor{
		Output: Output{
			Name: "sageodbc",
			Icon: filepath.Join(dir, "app.ico"),
		},
	}

	require.ErrorIs(t, d.ValidateResources(), ErrMissingResource)

	require.NoError(t, os.WriteFile(d.Output.Icon, []byte("ico"), 0o600))
	require.NoError(t, d.ValidateResources())
}

// TestResolveInterpreter covers explicit, shebang and missing interpreter cases.
func TestResolveInterpreter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := filepath.Join(dir, "cli.py")
	require.NoError(t, os.WriteFile(script, []byte("#!/usr/bin/env python3\nprint()\n"), 0o600))

	// Shebang parsing.
	d := &Descriptor{EntryScript: script}
	interpreter, args, err := d.ResolveInterpreter()
	require.NoError(t, err)
	require.Equal(t, "/usr/bin/env", interpreter)
	require.Equal(t, []string{"python3"}, args)

	// Explicit interpreter wins over the shebang.
	d.Interpreter = "python3 -u"
	interpreter, args, err = d.ResolveInterpreter()
	require.NoError(t, err)
	require.Equal(t, "python3", interpreter)
	require.Equal(t, []string{"-u"}, args)

	// No shebang, no interpreter.
	plain := filepath.Join(dir, "plain.py")
	require.NoError(t, os.WriteFile(plain, []byte("print()\n"), 0o600))

	d = &Descriptor{EntryScript: plain}
	_, _, err = d.ResolveInterpreter()
	require.ErrorIs(t, err, errNoInterpreter)
}
