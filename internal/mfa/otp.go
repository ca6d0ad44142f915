// Package mfa holds the MFA primitives: TOTP generation and verification, at-rest encryption of
// TOTP secrets, and backup code generation and redemption.
package mfa

import (
	"encoding/base32"
	"io"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"coaching-platform/backend/internal/security"
)

const (
	// SecretBytes is the raw TOTP secret size (256 bits).
	SecretBytes = 32
	// CodeDigits is the TOTP code length.
	CodeDigits = 6
	// Period is the TOTP step in seconds.
	Period = 30
	// Skew is the number of steps accepted on either side of the current one.
	Skew = 2
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// OtpEngine generates TOTP secrets and verifies codes (RFC 6238, SHA-1, 6 digits, 30s).
type OtpEngine struct {
	issuer string
	rand   io.Reader
}

// NewOtpEngine returns an engine that labels enrollment URIs with issuer.
// rand may be nil to use crypto/rand.
func NewOtpEngine(issuer string, rand io.Reader) *OtpEngine {
	return &OtpEngine{issuer: issuer, rand: rand}
}

// GenerateSecret returns a new unpadded base32 secret with 256 bits of entropy.
func (e *OtpEngine) GenerateSecret() (string, error) {
	raw, err := security.RandomBytes(e.rand, SecretBytes)
	if err != nil {
		return "", err
	}
	return secretEncoding.EncodeToString(raw), nil
}

// Verify reports whether code is valid for secret at now, accepting ±Skew steps.
// Malformed input yields false, never an error.
func (e *OtpEngine) Verify(secret, code string, now time.Time) bool {
	secret = strings.TrimSpace(secret)
	code = strings.TrimSpace(code)
	if secret == "" || !isDigits(code, CodeDigits) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, now, validateOpts())
	return err == nil && ok
}

// URI builds the otpauth:// enrollment URI for identity (usually the user's email).
func (e *OtpEngine) URI(identity, secret string) (string, error) {
	raw, err := secretEncoding.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil {
		return "", err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: identity,
		Period:      Period,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

// GenerateCode returns the code for secret at t. Used by tooling and tests.
func GenerateCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, validateOpts())
}

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
