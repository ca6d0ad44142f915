package domain

import (
	"errors"
	"time"
)

var (
	// ErrBackupCodeUsed is returned when a backup code hash has already been consumed.
	ErrBackupCodeUsed = errors.New("backup code already used")
	// ErrAlreadyEnabled is returned by a conditional enable when MFA is already on.
	ErrAlreadyEnabled = errors.New("mfa already enabled")
	// ErrNotEnabled is returned when an operation requires enabled MFA.
	ErrNotEnabled = errors.New("mfa not enabled")
)

// Enrollment is a user's MFA state (stored in mfa_enrollments). Disabling clears the secret and
// codes but keeps the row.
type Enrollment struct {
	UserID string
	// EncryptedSecret is the SecretCodec output ("iv:ciphertext"); empty when not set up.
	EncryptedSecret string
	// BackupCodes holds SHA-256 hashes of unused backup codes.
	BackupCodes []string
	// UsedBackupCodes holds hashes of consumed backup codes.
	UsedBackupCodes []string
	Enabled         bool
	VerifiedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasSecret reports whether a TOTP secret is stored.
func (e *Enrollment) HasSecret() bool {
	return e != nil && e.EncryptedSecret != ""
}

// Clone returns a deep copy.
func (e *Enrollment) Clone() *Enrollment {
	if e == nil {
		return nil
	}
	c := *e
	c.BackupCodes = append([]string(nil), e.BackupCodes...)
	c.UsedBackupCodes = append([]string(nil), e.UsedBackupCodes...)
	if e.VerifiedAt != nil {
		t := *e.VerifiedAt
		c.VerifiedAt = &t
	}
	return &c
}
