package repository

import (
	"context"
	"sync"
	"time"

	"coaching-platform/backend/internal/session/domain"
)

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*domain.Session)}
}

func (r *MemoryRepository) Get(_ context.Context, tokenHash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tokenHash]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.TokenHash] = &cp
	return nil
}

func (r *MemoryRepository) MarkVerified(_ context.Context, tokenHash string, expiresAt, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tokenHash]
	if !ok || s.Verified || s.Expired(now) {
		return false, nil
	}
	s.Verified = true
	s.ExpiresAt = expiresAt
	return true, nil
}

func (r *MemoryRepository) Delete(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	delete(r.sessions, tokenHash)
	r.mu.Unlock()
	return nil
}
