package resource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLoadVersionResource parses the YAML version metadata document.
func TestLoadVersionResource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "version.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
file_version: 1.2.3.0
product_version: 1.2.3
strings:
  ProductName: sageodbc
  CompanyName: Example Ltd
`), 0o600))

	vr, err := LoadVersionResource(path)
	require.NoError(t, err)
	require.Equal(t, "1.2.3.0", vr.FileVersion)
	require.Equal(t, "1.2.3", vr.ProductVersion)
	require.Equal(t, "sageodbc", vr.Strings["ProductName"])
}

// TestEmbed_NothingToDo leaves the executable untouched without inputs.
func TestEmbed_NothingToDo(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stub.exe")
	require.NoError(t, os.WriteFile(path, []byte("MZ fake"), 0o755))

	require.NoError(t, Embed(path, "", nil))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("MZ fake"), contents)
}
