package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken returns the hex SHA-256 of a bearer secret (trusted-device token, MFA session token,
// backup code). Only this hash is ever persisted.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// HashEqual compares two hex hashes in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// TokenHashEqual hashes providedToken and compares it with storedHash in constant time.
func TokenHashEqual(providedToken, storedHash string) bool {
	return HashEqual(HashToken(providedToken), storedHash)
}
