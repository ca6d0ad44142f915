package repository

import (
	"context"
	"time"

	"coaching-platform/backend/internal/device/domain"
)

// Repository defines persistence for trusted devices.
type Repository interface {
	// Get returns the device with id owned by userID, or nil if not found.
	Get(ctx context.Context, userID, id string) (*domain.TrustedDevice, error)
	// ListByUser returns the user's devices that have not expired at now, newest first.
	ListByUser(ctx context.Context, userID string, now time.Time) ([]*domain.TrustedDevice, error)
	Create(ctx context.Context, d *domain.TrustedDevice) error
	// Touch sets last_used_at and replaces IP and user agent when they are non-empty.
	Touch(ctx context.Context, id string, at time.Time, ip, userAgent string) error
	// Delete removes the device. Returns domain.ErrNotFound when nothing was deleted.
	Delete(ctx context.Context, userID, id string) error
}
