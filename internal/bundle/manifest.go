package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// FormatVersion is the current artifact format version.
	FormatVersion = 1

	// ManifestEntryName is the payload path of the manifest.
	// The dotted prefix keeps it clear of user destination paths.
	ManifestEntryName = ".bundle/manifest.json"
)

// Manifest describes the contents of one artifact. It is stored as the
// first payload entry and never contains build timestamps or identifiers,
// so identical inputs yield identical manifests.
type Manifest struct {
	// FormatVersion is the artifact format this manifest was written with.
	FormatVersion int `json:"format_version"`
	// Name is the bundle's base name from the descriptor.
	Name string `json:"name"`
	// Version is the bundler's semantic version at build time.
	Version string `json:"version"`
	// EntryScript is the payload path of the entry script.
	EntryScript string `json:"entry_script"`
	// Interpreter executes the entry script at run time.
	Interpreter string `json:"interpreter"`
	// InterpreterArgs are passed to the interpreter before the script path.
	InterpreterArgs []string `json:"interpreter_args,omitempty"`
	// Console records whether the artifact attaches a console on launch.
	Console bool `json:"console"`
	// RuntimeHooks are payload paths executed, in order, before the entry script.
	RuntimeHooks []string `json:"runtime_hooks,omitempty"`
	// Files lists every packed file except the manifest itself.
	Files []FileEntry `json:"files"`
}

// FileEntry describes one packed file.
type FileEntry struct {
	// Path is the file's payload path, which is also its extraction path.
	Path string `json:"path"`
	// Size is the file's length in bytes.
	Size int64 `json:"size"`
	// Mode is the permission mode the file is extracted with.
	Mode uint32 `json:"mode"`
	// Checksum is the base64-encoded SHA-512 of the file's contents.
	Checksum string `json:"checksum"`
}

var errManifestFirst = errors.New("manifest must be the first payload entry")

// encode renders the manifest as indented JSON with a trailing newline.
func (m *Manifest) encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return append(data, '\n'), nil
}

// decodeManifest parses manifest bytes and checks the format version.
func decodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	if m.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported manifest format version %d", m.FormatVersion)
	}

	return &m, nil
}

// fileByPath returns the manifest entry for a payload path.
func (m *Manifest) fileByPath(path string) (FileEntry, bool) {
	for _, entry := range m.Files {
		if entry.Path == path {
			return entry, true
		}
	}

	return FileEntry{}, false
}
