package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Input maps one file on disk to its payload path.
type Input struct {
	// PayloadPath is the file's path inside the payload, slash-separated.
	PayloadPath string
	// SourcePath is the file's location on disk at build time.
	SourcePath string
}

// Spec declares everything BuildPayload needs to produce a payload.
type Spec struct {
	// Name is the bundle's base name.
	Name string
	// Version is the bundler version recorded in the manifest.
	Version string
	// EntryScript is the payload path of the entry script.
	EntryScript string
	// Interpreter executes the entry script at run time.
	Interpreter string
	// InterpreterArgs are passed to the interpreter before the script path.
	InterpreterArgs []string
	// Console records the descriptor's console flag.
	Console bool
	// RuntimeHooks are payload paths executed before the entry script.
	RuntimeHooks []string
	// Inputs are the files to pack. Paths must be unique.
	Inputs []Input
	// Compress wraps the archive in a zstd frame.
	Compress bool
}

// Payload is a fully built payload ready to be appended to a stub.
type Payload struct {
	// Data is the payload exactly as stored in the artifact.
	Data []byte
	// Manifest describes the payload contents.
	Manifest *Manifest
	// Checksum is the SHA-512 of Data.
	Checksum []byte
	// Compressed reports whether Data is zstd-wrapped.
	Compressed bool
}

// Footer returns the footer matching this payload.
func (p *Payload) Footer() *Footer {
	f := &Footer{
		FormatVersion: FormatVersion,
		Compressed:    p.Compressed,
		PayloadSize:   uint64(len(p.Data)),
	}

	copy(f.Checksum[:], p.Checksum)

	return f
}

// BuildPayload packs the spec's inputs into a deterministic archive.
// Inputs are read fully into memory; bundles are script-sized, not images.
func BuildPayload(spec *Spec) (*Payload, error) {
	inputs := append([]Input(nil), spec.Inputs...)
	sort.Slice(inputs, func(i, j int) bool {
		return inputs[i].PayloadPath < inputs[j].PayloadPath
	})

	manifest := &Manifest{
		FormatVersion:   FormatVersion,
		Name:            spec.Name,
		Version:         spec.Version,
		EntryScript:     spec.EntryScript,
		Interpreter:     spec.Interpreter,
		InterpreterArgs: spec.InterpreterArgs,
		Console:         spec.Console,
		RuntimeHooks:    spec.RuntimeHooks,
		Files:           make([]FileEntry, 0, len(inputs)),
	}

	contents := make(map[string][]byte, len(inputs))

	for _, input := range inputs {
		data, err := os.ReadFile(filepath.Clean(input.SourcePath))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", input.SourcePath, err)
		}

		info, err := os.Stat(input.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", input.SourcePath, err)
		}

		checksum, err := Checksum(data)
		if err != nil {
			return nil, err
		}

		contents[input.PayloadPath] = data
		manifest.Files = append(manifest.Files, FileEntry{
			Path:     input.PayloadPath,
			Size:     int64(len(data)),
			Mode:     normalizeMode(info.Mode()),
			Checksum: base64.StdEncoding.EncodeToString(checksum),
		})
	}

	archive, err := buildArchive(manifest, inputs, contents)
	if err != nil {
		return nil, err
	}

	data := archive
	if spec.Compress {
		if data, err = compress(archive); err != nil {
			return nil, err
		}
	}

	checksum, err := Checksum(data)
	if err != nil {
		return nil, err
	}

	return &Payload{
		Data:       data,
		Manifest:   manifest,
		Checksum:   checksum,
		Compressed: spec.Compress,
	}, nil
}

// buildArchive writes the manifest entry followed by the sorted inputs.
func buildArchive(manifest *Manifest, inputs []Input, contents map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer

	tw := tar.NewWriter(&buf)

	manifestData, err := manifest.encode()
	if err != nil {
		return nil, err
	}

	if err = writeEntry(tw, ManifestEntryName, 0o644, manifestData); err != nil {
		return nil, err
	}

	for _, input := range inputs {
		entry, _ := manifest.fileByPath(input.PayloadPath)
		if err = writeEntry(tw, input.PayloadPath, int64(entry.Mode), contents[input.PayloadPath]); err != nil {
			return nil, err
		}
	}

	if err = tw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	return buf.Bytes(), nil
}

// writeEntry writes one normalized file entry into the archive.
func writeEntry(tw *tar.Writer, name string, mode int64, data []byte) error {
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     int64(len(data)),
		Mode:     mode,
		ModTime:  time.Unix(0, 0).UTC(),
		Format:   tar.FormatPAX,
	}

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}

	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}

	return nil
}

// compress wraps data in a single deterministic zstd frame.
func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	enc, err := zstd.NewWriter(&buf,
		zstd.WithEncoderLevel(zstd.SpeedBestCompression),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create compressor: %w", err)
	}

	if _, err = enc.Write(data); err != nil {
		_ = enc.Close()

		return nil, fmt.Errorf("compress payload: %w", err)
	}

	if err = enc.Close(); err != nil {
		return nil, fmt.Errorf("finish compression: %w", err)
	}

	return buf.Bytes(), nil
}

// decompress unwraps a zstd frame produced by compress.
func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create decompressor: %w", err)
	}

	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}

	return out, nil
}

// normalizeMode keeps only the executable distinction so payloads do not
// depend on build-host umask details.
func normalizeMode(mode os.FileMode) uint32 {
	if mode&0o111 != 0 {
		return 0o755
	}

	return 0o644
}
