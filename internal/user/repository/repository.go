package repository

import (
	"context"

	"coaching-platform/backend/internal/user/domain"
)

// Repository defines persistence for user profiles.
type Repository interface {
	// GetByID returns the profile for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	// Upsert creates the profile or updates its email and display name.
	Upsert(ctx context.Context, p *domain.Profile) error
}
