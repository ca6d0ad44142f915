package repository

import (
	"context"
	"time"

	"coaching-platform/backend/internal/mfa/domain"
)

// Repository defines persistence for MFA enrollments. Every mutating method is a single
// conditional write so concurrent requests for the same user cannot interleave.
type Repository interface {
	// GetByUserID returns the enrollment for userID, or nil if none exists.
	GetByUserID(ctx context.Context, userID string) (*domain.Enrollment, error)
	// Enable stores the encrypted secret and backup code hashes and marks MFA enabled.
	// Returns domain.ErrAlreadyEnabled when the row is already enabled.
	Enable(ctx context.Context, e *domain.Enrollment) error
	// Disable clears secret and codes and keeps the row. Returns domain.ErrNotEnabled if not enabled.
	Disable(ctx context.Context, userID string, at time.Time) error
	// ReplaceBackupCodes swaps in new unused hashes and empties the used set.
	// Returns domain.ErrNotEnabled if not enabled.
	ReplaceBackupCodes(ctx context.Context, userID string, hashes []string, at time.Time) error
	// ConsumeBackupCode moves hash from unused to used and returns the unused count left.
	// Returns domain.ErrBackupCodeUsed if hash is not currently unused.
	ConsumeBackupCode(ctx context.Context, userID, hash string) (int, error)
}
