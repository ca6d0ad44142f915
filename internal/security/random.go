package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// RandomBytes reads n bytes from r, or from crypto/rand when r is nil.
func RandomBytes(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("random: %w", err)
	}
	return b, nil
}

// RandomHex returns n random bytes hex-encoded (2n characters).
func RandomHex(r io.Reader, n int) (string, error) {
	b, err := RandomBytes(r, n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
