package domain

import (
	"errors"
	"strings"
	"time"
)

// Errors returned by the session manager.
var (
	ErrMalformedToken = errors.New("malformed mfa session token")
	ErrNotFound       = errors.New("mfa session not found")
	ErrExpired        = errors.New("mfa session expired")
)

// TokenPrefix starts every MFA session token. The rest is 64 lowercase hex characters.
const TokenPrefix = "mfa_"

const tokenHexLength = 64

// Session is an MFA elevation state for one login attempt. It is stored under the SHA-256 of its
// token. Verified only ever moves from false to true.
type Session struct {
	TokenHash string
	UserID    string
	Verified  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// WellFormedToken reports whether token is TokenPrefix followed by 64 lowercase hex characters.
func WellFormedToken(token string) bool {
	if !strings.HasPrefix(token, TokenPrefix) {
		return false
	}
	rest := token[len(TokenPrefix):]
	if len(rest) != tokenHexLength {
		return false
	}
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
