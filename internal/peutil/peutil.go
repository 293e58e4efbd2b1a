// Package peutil patches fields of Portable Executable headers in place.
//
// The standard library's debug/pe only reads headers; the one write this
// project needs is the subsystem switch that detaches a console from a
// Windows artifact, a two-byte field at a fixed offset inside the optional
// header.
package peutil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Subsystem values relevant to console attachment.
const (
	// SubsystemGUI marks an executable that launches without a console.
	SubsystemGUI uint16 = 2
	// SubsystemConsole marks an executable that attaches a console on launch.
	SubsystemConsole uint16 = 3
)

const (
	// dosMagicOffset is where the e_lfanew pointer lives in the DOS header.
	dosMagicOffset = 0x3C
	// coffHeaderSize is the size of the COFF file header after the PE signature.
	coffHeaderSize = 20
	// subsystemOffset is the subsystem field's offset inside the optional
	// header, identical for PE32 and PE32+.
	subsystemOffset = 68

	peMagic32     = 0x10B
	peMagic32Plus = 0x20B
)

// ErrNotPE is returned for files that do not carry a PE header.
var ErrNotPE = errors.New("file is not a PE executable")

// SetSubsystem rewrites the subsystem field of the executable at path.
func SetSubsystem(path string, subsystem uint16) error {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read executable: %w", err)
	}

	offset, err := subsystemFieldOffset(contents)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint16(contents[offset:], subsystem)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat executable: %w", err)
	}

	if err = os.WriteFile(path, contents, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write executable: %w", err)
	}

	return nil
}

// GetSubsystem reads the subsystem field of the executable at path.
func GetSubsystem(path string) (uint16, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("read executable: %w", err)
	}

	offset, err := subsystemFieldOffset(contents)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(contents[offset:]), nil
}

// subsystemFieldOffset walks DOS header -> PE signature -> optional header
// and returns the absolute offset of the subsystem field.
func subsystemFieldOffset(contents []byte) (int, error) {
	if len(contents) < dosMagicOffset+4 || contents[0] != 'M' || contents[1] != 'Z' {
		return 0, ErrNotPE
	}

	peOffset := int(binary.LittleEndian.Uint32(contents[dosMagicOffset:]))
	if peOffset+4+coffHeaderSize > len(contents) {
		return 0, ErrNotPE
	}

	if string(contents[peOffset:peOffset+4]) != "PE\x00\x00" {
		return 0, ErrNotPE
	}

	optionalHeader := peOffset + 4 + coffHeaderSize
	if optionalHeader+subsystemOffset+2 > len(contents) {
		return 0, ErrNotPE
	}

	magic := binary.LittleEndian.Uint16(contents[optionalHeader:])
	if magic != peMagic32 && magic != peMagic32Plus {
		return 0, ErrNotPE
	}

	return optionalHeader + subsystemOffset, nil
}
