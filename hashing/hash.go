// Package hashing computes the content-identity digest used for
// end-to-end transfer verification. The digest is BLAKE2b-256, hex
// encoded, and is a pure function of the file bytes.
package hashing

import (
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Hash reads src to EOF and returns the hex-encoded digest of its
// content. A read error aborts with no partial digest.
func Hash(src io.Reader) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("initialize digest: %w", err)
	}
	if _, err := io.Copy(h, src); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex-encoded digest of data.
func HashBytes(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether data's digest matches expected. It is used on
// the receive path after assembly.
func Verify(data []byte, expected string) bool {
	return HashBytes(data) == expected
}
