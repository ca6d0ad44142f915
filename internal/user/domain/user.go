package domain

import (
	"errors"
	"strings"
	"time"
)

// Profile is the slice of a platform user the MFA subsystem reads: the email labels the
// authenticator entry.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

// Validate validates the profile for persistence. Returns an error describing the first validation failure.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("id is required")
	}
	if !strings.Contains(p.Email, "@") {
		return errors.New("a valid email is required")
	}
	return nil
}

// Development identity. cmd/seed writes it to Postgres and the server seeds it into the in-memory
// store, so `seed` tokens work against either.
const (
	DevUserID      = "dev-user-001"
	DevUserEmail   = "dev@example.com"
	DevDisplayName = "Dev Coach"
)

// DevProfile returns the development profile created at now.
func DevProfile(now time.Time) *Profile {
	return &Profile{ID: DevUserID, Email: DevUserEmail, DisplayName: DevDisplayName, CreatedAt: now}
}
