package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"coaching-platform/backend/internal/device/domain"
)

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	mu      sync.Mutex
	devices map[string]*domain.TrustedDevice
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{devices: make(map[string]*domain.TrustedDevice)}
}

func (r *MemoryRepository) Get(_ context.Context, userID, id string) (*domain.TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok || d.UserID != userID {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string, now time.Time) ([]*domain.TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TrustedDevice
	for _, d := range r.devices {
		if d.UserID == userID && !d.Expired(now) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) Create(_ context.Context, d *domain.TrustedDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.devices[d.ID] = &cp
	return nil
}

func (r *MemoryRepository) Touch(_ context.Context, id string, at time.Time, ip, userAgent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil
	}
	d.LastUsedAt = at
	if ip != "" {
		d.IPAddress = ip
	}
	if userAgent != "" {
		d.UserAgent = userAgent
	}
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok || d.UserID != userID {
		return domain.ErrNotFound
	}
	delete(r.devices, id)
	return nil
}
