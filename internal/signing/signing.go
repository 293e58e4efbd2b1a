// Package signing produces and checks detached OpenPGP signatures for
// release manifests, so consumers can verify an artifact's manifest came
// from the keyholder that published it.
package signing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ProtonMail/go-crypto/openpgp"
)

var (
	// errNoSigningKey is returned when the keyring holds no usable private key.
	errNoSigningKey = errors.New("keyring contains no private signing key")
	// ErrBadSignature is returned when a signature does not match the
	// signed content for any key in the keyring.
	ErrBadSignature = errors.New("signature verification failed")
)

// LoadKeyring reads an armored or binary OpenPGP keyring from disk.
func LoadKeyring(path string) (openpgp.EntityList, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	entities, err := openpgp.ReadArmoredKeyRing(file)
	if err == nil {
		return entities, nil
	}

	// Retry as a binary keyring.
	if _, err = file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind keyring: %w", err)
	}

	entities, err = openpgp.ReadKeyRing(file)
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}

	return entities, nil
}

// signerFromKeyring picks the first entity holding a usable private key.
func signerFromKeyring(keyring openpgp.EntityList) (*openpgp.Entity, error) {
	for _, entity := range keyring {
		if entity.PrivateKey != nil && !entity.PrivateKey.Encrypted {
			return entity, nil
		}
	}

	return nil, errNoSigningKey
}

// SignFile writes an armored detached signature of inputPath to outputPath
// using the first private key found at keyPath.
func SignFile(keyPath, inputPath, outputPath string) error {
	keyring, err := LoadKeyring(keyPath)
	if err != nil {
		return err
	}

	signer, err := signerFromKeyring(keyring)
	if err != nil {
		return err
	}

	message, err := os.ReadFile(filepath.Clean(inputPath))
	if err != nil {
		return fmt.Errorf("read %s: %w", inputPath, err)
	}

	var signature bytes.Buffer
	if err = openpgp.ArmoredDetachSign(&signature, signer, bytes.NewReader(message), nil); err != nil {
		return fmt.Errorf("sign %s: %w", inputPath, err)
	}

	if err = os.WriteFile(filepath.Clean(outputPath), signature.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write signature: %w", err)
	}

	return nil
}

// VerifyFile checks the armored detached signature at signaturePath against
// the content at signedPath using the keyring at keyringPath.
func VerifyFile(keyringPath, signedPath, signaturePath string) error {
	keyring, err := LoadKeyring(keyringPath)
	if err != nil {
		return err
	}

	signed, err := os.Open(filepath.Clean(signedPath))
	if err != nil {
		return fmt.Errorf("open %s: %w", signedPath, err)
	}

	defer func() {
		_ = signed.Close()
	}()

	signature, err := os.Open(filepath.Clean(signaturePath))
	if err != nil {
		return fmt.Errorf("open %s: %w", signaturePath, err)
	}

	defer func() {
		_ = signature.Close()
	}()

	if _, err = openpgp.CheckArmoredDetachedSignature(keyring, signed, signature, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	return nil
}
