package repository

import (
	"context"

	"coaching-platform/backend/internal/audit/domain"
)

// DefaultListLimit caps ListByUser when the caller passes a non-positive limit.
const DefaultListLimit = 50

// MaxListLimit is the largest page ListByUser returns.
const MaxListLimit = 200

// Repository defines persistence for security events. There is no update or delete.
type Repository interface {
	Create(ctx context.Context, e *domain.SecurityEvent) error
	// ListByUser returns the user's most recent events, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.SecurityEvent, error)
}

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
