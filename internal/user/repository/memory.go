package repository

import (
	"context"
	"sync"

	"coaching-platform/backend/internal/user/domain"
)

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
}

// NewMemoryRepository returns a repository seeded with profiles.
func NewMemoryRepository(profiles ...*domain.Profile) *MemoryRepository {
	r := &MemoryRepository{profiles: make(map[string]domain.Profile)}
	for _, p := range profiles {
		r.profiles[p.ID] = *p
	}
	return r
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, p *domain.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.profiles[p.ID]; ok && p.CreatedAt.IsZero() {
		p.CreatedAt = cur.CreatedAt
	}
	r.profiles[p.ID] = *p
	return nil
}
