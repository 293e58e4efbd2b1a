package bundle

import (
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	// Ensure SHA512 is available for checksum calculation.
	_ "crypto/sha512"
)

// DefaultChecksumFunction is used to hash payloads and packed files.
const DefaultChecksumFunction crypto.Hash = crypto.SHA512

var errHashUnavailable = errors.New("hash function unavailable")

// Checksum returns the checksum of the provided bytes using DefaultChecksumFunction.
func Checksum(data []byte) ([]byte, error) {
	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err := hasher.Write(data); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// FileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func FileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	return Checksum(contents)
}
