package repository

import (
	"context"
	"time"

	"coaching-platform/backend/internal/session/domain"
)

// Repository defines persistence for MFA sessions, keyed by token hash.
type Repository interface {
	// Get returns the session for tokenHash, or nil if not found.
	Get(ctx context.Context, tokenHash string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// MarkVerified flips an unverified session that has not expired at now to verified and sets
	// its expiry. It reports whether a row changed.
	MarkVerified(ctx context.Context, tokenHash string, expiresAt, now time.Time) (bool, error)
	Delete(ctx context.Context, tokenHash string) error
}
