package mfa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"

	"coaching-platform/backend/internal/security"
)

// ErrCrypto is returned when a stored secret cannot be decoded or decrypted.
var ErrCrypto = errors.New("mfa: setup data corrupted")

const (
	keyLen  = 32 // AES-256
	saltLen = 16
)

// ScryptParams are the cost parameters for per-user key derivation.
type ScryptParams struct {
	N, R, P int
}

// DefaultScryptParams matches the interactive-login recommendation (N=2^14, r=8, p=1).
var DefaultScryptParams = ScryptParams{N: 16384, R: 8, P: 1}

// SecretCodec encrypts TOTP secrets at rest with AES-256-GCM under a per-user scrypt key.
// Ciphertext is "hex(iv):hex(sealed)".
type SecretCodec struct {
	masterKey []byte
	saltKey   []byte
	params    ScryptParams
	rand      io.Reader
}

// CodecOption configures a SecretCodec.
type CodecOption func(*SecretCodec)

// WithScryptParams overrides the KDF cost (tests use a cheap setting).
func WithScryptParams(p ScryptParams) CodecOption {
	return func(c *SecretCodec) { c.params = p }
}

// WithRand sets the IV source.
func WithRand(r io.Reader) CodecOption {
	return func(c *SecretCodec) { c.rand = r }
}

// NewSecretCodec returns a codec keyed by masterKey. saltKey seeds the per-user salt.
func NewSecretCodec(masterKey, saltKey string, opts ...CodecOption) (*SecretCodec, error) {
	if masterKey == "" || saltKey == "" {
		return nil, errors.New("mfa: encryption and salt keys are required")
	}
	c := &SecretCodec{
		masterKey: []byte(masterKey),
		saltKey:   []byte(saltKey),
		params:    DefaultScryptParams,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Encrypt seals secret for userID.
func (c *SecretCodec) Encrypt(secret, userID string) (string, error) {
	gcm, err := c.aead(userID)
	if err != nil {
		return "", err
	}
	iv, err := security.RandomBytes(c.rand, gcm.NonceSize())
	if err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, iv, []byte(secret), nil)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext for userID. Any format or authentication failure is ErrCrypto.
func (c *SecretCodec) Decrypt(ciphertext, userID string) (string, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("%w: malformed ciphertext", ErrCrypto)
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: malformed iv", ErrCrypto)
	}
	sealed, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: malformed payload", ErrCrypto)
	}
	gcm, err := c.aead(userID)
	if err != nil {
		return "", err
	}
	if len(iv) != gcm.NonceSize() {
		return "", fmt.Errorf("%w: bad iv length", ErrCrypto)
	}
	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return string(plain), nil
}

func (c *SecretCodec) aead(userID string) (cipher.AEAD, error) {
	key, err := c.deriveKey(userID)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return cipher.NewGCM(block)
}

// deriveKey = scrypt(masterKey, SHA-256(saltKey || userID)[:16]).
func (c *SecretCodec) deriveKey(userID string) ([]byte, error) {
	h := sha256.New()
	h.Write(c.saltKey)
	h.Write([]byte(userID))
	salt := h.Sum(nil)[:saltLen]
	key, err := scrypt.Key(c.masterKey, salt, c.params.N, c.params.R, c.params.P, keyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: derive key: %v", ErrCrypto, err)
	}
	return key, nil
}
