package bundle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrOutputWrite is returned when the artifact cannot be written to the
// output directory.
var ErrOutputWrite = errors.New("unable to write artifact")

// AppendPayload appends the payload and its footer to an existing stub copy.
// The file at path becomes a complete artifact after this call.
func AppendPayload(path string, payload *Payload) error {
	file, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	if _, err = file.Write(payload.Data); err != nil {
		_ = file.Close()

		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	if _, err = file.Write(payload.Footer().marshal()); err != nil {
		_ = file.Close()

		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	return nil
}

// CopyFile copies src to dst with the provided permissions, truncating dst.
func CopyFile(dst, src string, mode os.FileMode) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	return nil
}
