package bundle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// FooterSize is the fixed length of the trailing footer in bytes.
const FooterSize = 96

const (
	// flagCompressed marks a zstd-wrapped payload.
	flagCompressed uint16 = 1 << 0
)

// footerMagic identifies an artifact produced by this bundler.
var footerMagic = [8]byte{'S', 'C', 'R', 'B', 'N', 'D', 'L', '1'}

var (
	// ErrNotABundle is returned when a file carries no valid footer.
	ErrNotABundle = errors.New("file is not a bundle artifact")
	// ErrChecksumMismatch is returned when the payload does not match the
	// checksum recorded in the footer.
	ErrChecksumMismatch = errors.New("payload checksum mismatch")
)

// Footer is the fixed-size record at the very end of every artifact.
type Footer struct {
	// FormatVersion is the artifact format version.
	FormatVersion uint16
	// Compressed reports whether the payload is zstd-wrapped.
	Compressed bool
	// PayloadSize is the stored payload length in bytes.
	PayloadSize uint64
	// Checksum is the SHA-512 of the stored payload bytes.
	Checksum [64]byte
}

// marshal renders the footer into its fixed binary layout:
// magic[8] version[2] flags[2] payloadSize[8] checksum[64] padding[12].
func (f *Footer) marshal() []byte {
	buf := make([]byte, FooterSize)

	copy(buf[0:8], footerMagic[:])
	binary.BigEndian.PutUint16(buf[8:10], f.FormatVersion)

	var flags uint16
	if f.Compressed {
		flags |= flagCompressed
	}

	binary.BigEndian.PutUint16(buf[10:12], flags)
	binary.BigEndian.PutUint64(buf[12:20], f.PayloadSize)
	copy(buf[20:84], f.Checksum[:])

	return buf
}

// parseFooter validates the magic and decodes the footer fields.
func parseFooter(buf []byte) (*Footer, error) {
	if len(buf) != FooterSize {
		return nil, fmt.Errorf("footer must be %d bytes: %w", FooterSize, ErrNotABundle)
	}

	if !bytes.Equal(buf[0:8], footerMagic[:]) {
		return nil, ErrNotABundle
	}

	f := &Footer{
		FormatVersion: binary.BigEndian.Uint16(buf[8:10]),
		PayloadSize:   binary.BigEndian.Uint64(buf[12:20]),
	}

	flags := binary.BigEndian.Uint16(buf[10:12])
	f.Compressed = flags&flagCompressed != 0

	copy(f.Checksum[:], buf[20:84])

	if f.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported artifact format version %d", f.FormatVersion)
	}

	return f, nil
}
