package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// errUnsafePath guards extraction against entries escaping the target directory.
	errUnsafePath = errors.New("payload entry has an unsafe path")
	// errFileNotInManifest is returned when the archive carries an entry
	// the manifest does not describe.
	errFileNotInManifest = errors.New("payload entry not present in manifest")
	// errEntryMissing is returned when the manifest promises an entry the
	// archive does not carry.
	errEntryMissing = errors.New("payload entry missing from archive")
)

// Reader gives access to a finished artifact's footer, manifest and files.
type Reader struct {
	// Footer is the artifact's decoded trailing record.
	Footer *Footer
	// Manifest describes the payload contents.
	Manifest *Manifest

	// archive holds the decompressed tar bytes.
	archive []byte
}

// Open reads the artifact at path, verifies the payload checksum against the
// footer and parses the manifest. It fails with ErrNotABundle for files that
// carry no footer and ErrChecksumMismatch for corrupted payloads.
func Open(path string) (*Reader, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	if info.Size() < FooterSize {
		return nil, ErrNotABundle
	}

	footerBytes := make([]byte, FooterSize)
	if _, err = file.ReadAt(footerBytes, info.Size()-FooterSize); err != nil {
		return nil, fmt.Errorf("read footer: %w", err)
	}

	footer, err := parseFooter(footerBytes)
	if err != nil {
		return nil, err
	}

	payloadOffset := info.Size() - FooterSize - int64(footer.PayloadSize)
	if payloadOffset < 0 {
		return nil, ErrNotABundle
	}

	payload, err := io.ReadAll(io.NewSectionReader(file, payloadOffset, int64(footer.PayloadSize)))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	checksum, err := Checksum(payload)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(checksum, footer.Checksum[:]) {
		return nil, ErrChecksumMismatch
	}

	archive := payload
	if footer.Compressed {
		if archive, err = decompress(payload); err != nil {
			return nil, err
		}
	}

	manifest, err := readManifest(archive)
	if err != nil {
		return nil, err
	}

	return &Reader{
		Footer:   footer,
		Manifest: manifest,
		archive:  archive,
	}, nil
}

// Extract unpacks every payload file into dir, verifying each file against
// its manifest checksum. Destination paths are created relative to dir.
func (r *Reader) Extract(dir string) error {
	tr := tar.NewReader(bytes.NewReader(r.archive))

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read payload entry: %w", err)
		}

		if header.Name == ManifestEntryName {
			continue
		}

		entry, ok := r.Manifest.fileByPath(header.Name)
		if !ok {
			return fmt.Errorf("%s: %w", header.Name, errFileNotInManifest)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("read %s: %w", header.Name, err)
		}

		checksum, err := Checksum(data)
		if err != nil {
			return err
		}

		if base64.StdEncoding.EncodeToString(checksum) != entry.Checksum {
			return fmt.Errorf("%s: %w", header.Name, ErrChecksumMismatch)
		}

		target, err := safeJoin(dir, header.Name)
		if err != nil {
			return err
		}

		if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
		}

		if err = os.WriteFile(target, data, os.FileMode(entry.Mode)); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
	}
}

// Verify re-reads every payload entry and checks it against its manifest
// checksum without writing anything to disk. It also reports entries the
// manifest promises but the archive does not carry.
func (r *Reader) Verify() error {
	seen := make(map[string]struct{}, len(r.Manifest.Files))

	tr := tar.NewReader(bytes.NewReader(r.archive))

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("read payload entry: %w", err)
		}

		if header.Name == ManifestEntryName {
			continue
		}

		entry, ok := r.Manifest.fileByPath(header.Name)
		if !ok {
			return fmt.Errorf("%s: %w", header.Name, errFileNotInManifest)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("read %s: %w", header.Name, err)
		}

		checksum, err := Checksum(data)
		if err != nil {
			return err
		}

		if base64.StdEncoding.EncodeToString(checksum) != entry.Checksum {
			return fmt.Errorf("%s: %w", header.Name, ErrChecksumMismatch)
		}

		seen[header.Name] = struct{}{}
	}

	for _, entry := range r.Manifest.Files {
		if _, ok := seen[entry.Path]; !ok {
			return fmt.Errorf("%s: %w", entry.Path, errEntryMissing)
		}
	}

	return nil
}

// File returns the contents of a single payload entry by its payload path.
func (r *Reader) File(path string) ([]byte, error) {
	tr := tar.NewReader(bytes.NewReader(r.archive))

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
		}

		if err != nil {
			return nil, fmt.Errorf("read payload entry: %w", err)
		}

		if header.Name != path {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		return data, nil
	}
}

// readManifest expects the manifest as the first archive entry.
func readManifest(archive []byte) (*Manifest, error) {
	tr := tar.NewReader(bytes.NewReader(archive))

	header, err := tr.Next()
	if err != nil {
		return nil, fmt.Errorf("read payload entry: %w", err)
	}

	if header.Name != ManifestEntryName {
		return nil, errManifestFirst
	}

	data, err := io.ReadAll(tr)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return decodeManifest(data)
}

// safeJoin joins name onto dir, rejecting absolute names and traversal.
func safeJoin(dir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%s: %w", name, errUnsafePath)
	}

	target := filepath.Join(dir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s: %w", name, errUnsafePath)
	}

	return target, nil
}
