package mfa

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"coaching-platform/backend/internal/mfa/domain"
	"coaching-platform/backend/internal/security"
)

// DefaultBackupCodeCount is the number of codes issued per enrollment.
const DefaultBackupCodeCount = 8

// backupCodeBytes of entropy render as 8 hex characters, "XXXX-XXXX".
const backupCodeBytes = 4

var (
	// ErrBackupCodeUsed is returned when a code was already redeemed.
	ErrBackupCodeUsed = domain.ErrBackupCodeUsed
	// ErrBackupCodeInvalid is returned when a code matches no unused code.
	ErrBackupCodeInvalid = errors.New("invalid backup code")
)

// BackupCodeStore moves a backup code hash from unused to used in one conditional write.
type BackupCodeStore interface {
	// ConsumeBackupCode returns the unused count after removal, or domain.ErrBackupCodeUsed
	// if hash is no longer in the unused set.
	ConsumeBackupCode(ctx context.Context, userID, hash string) (int, error)
}

// RedeemResult is the outcome of a successful redemption.
type RedeemResult struct {
	Remaining int
}

// BackupCodeVault generates, hashes and redeems single-use backup codes.
type BackupCodeVault struct {
	rand io.Reader
}

// NewBackupCodeVault returns a vault. rand may be nil to use crypto/rand.
func NewBackupCodeVault(rand io.Reader) *BackupCodeVault {
	return &BackupCodeVault{rand: rand}
}

// Generate returns count plaintext codes. Plaintext is shown once and never stored.
func (v *BackupCodeVault) Generate(count int) ([]string, error) {
	if count <= 0 {
		count = DefaultBackupCodeCount
	}
	codes := make([]string, 0, count)
	seen := make(map[string]bool, count)
	for len(codes) < count {
		raw, err := security.RandomBytes(v.rand, backupCodeBytes)
		if err != nil {
			return nil, err
		}
		s := strings.ToUpper(hex.EncodeToString(raw))
		code := s[:4] + "-" + s[4:]
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}

// NormalizeBackupCode canonicalizes user input to "XXXX-XXXX". Accepts lower case, surrounding
// whitespace and a missing dash.
func NormalizeBackupCode(code string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(code))
	c = strings.ReplaceAll(c, "-", "")
	if len(c) != 2*backupCodeBytes {
		return "", false
	}
	if _, err := hex.DecodeString(c); err != nil {
		return "", false
	}
	return c[:4] + "-" + c[4:], true
}

// HashBackupCode returns the stored form of code. Input is normalized first.
func HashBackupCode(code string) string {
	if n, ok := NormalizeBackupCode(code); ok {
		code = n
	}
	return security.HashToken(code)
}

// HashAll hashes every code in codes, rejecting malformed ones.
func HashAll(codes []string) ([]string, error) {
	out := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		n, ok := NormalizeBackupCode(c)
		if !ok {
			return nil, fmt.Errorf("%w: malformed code", ErrBackupCodeInvalid)
		}
		h := security.HashToken(n)
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out, nil
}

// Match finds the stored hash for code. A code already in the used set is ErrBackupCodeUsed.
// Every unused hash is compared in constant time.
func (v *BackupCodeVault) Match(e *domain.Enrollment, code string) (string, error) {
	n, ok := NormalizeBackupCode(code)
	if !ok || e == nil {
		return "", ErrBackupCodeInvalid
	}
	h := security.HashToken(n)
	for _, used := range e.UsedBackupCodes {
		if security.HashEqual(h, used) {
			return "", ErrBackupCodeUsed
		}
	}
	match := ""
	for _, stored := range e.BackupCodes {
		if security.HashEqual(h, stored) {
			match = stored
		}
	}
	if match == "" {
		return "", ErrBackupCodeInvalid
	}
	return match, nil
}

// Redeem matches code against e and consumes it through store. A concurrent redemption of the
// same code surfaces as ErrBackupCodeUsed from the store.
func (v *BackupCodeVault) Redeem(ctx context.Context, store BackupCodeStore, e *domain.Enrollment, code string) (RedeemResult, error) {
	hash, err := v.Match(e, code)
	if err != nil {
		return RedeemResult{}, err
	}
	remaining, err := store.ConsumeBackupCode(ctx, e.UserID, hash)
	if err != nil {
		return RedeemResult{}, err
	}
	return RedeemResult{Remaining: remaining}, nil
}
