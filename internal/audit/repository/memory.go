package repository

import (
	"context"
	"sort"
	"sync"

	"coaching-platform/backend/internal/audit/domain"
)

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	mu     sync.Mutex
	events []*domain.SecurityEvent
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, e *domain.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.events = append(r.events, &cp)
	return nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string, limit int) ([]*domain.SecurityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SecurityEvent
	for i := len(r.events) - 1; i >= 0; i-- {
		if e := r.events[i]; e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if n := ClampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}
