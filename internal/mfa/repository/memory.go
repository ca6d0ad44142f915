package repository

import (
	"context"
	"sync"
	"time"

	"coaching-platform/backend/internal/mfa/domain"
	"coaching-platform/backend/internal/platform/clock"
)

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	mu    sync.Mutex
	rows  map[string]*domain.Enrollment
	clock clock.Clock
}

// NewMemoryRepository returns an empty repository. c may be nil for the system clock.
func NewMemoryRepository(c clock.Clock) *MemoryRepository {
	if c == nil {
		c = clock.System
	}
	return &MemoryRepository{rows: make(map[string]*domain.Enrollment), clock: c}
}

func (r *MemoryRepository) GetByUserID(ctx context.Context, userID string) (*domain.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[userID].Clone(), nil
}

func (r *MemoryRepository) Enable(ctx context.Context, e *domain.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[e.UserID]
	if ok && cur.Enabled {
		return domain.ErrAlreadyEnabled
	}
	next := e.Clone()
	next.Enabled = true
	next.UsedBackupCodes = nil
	if ok {
		next.CreatedAt = cur.CreatedAt
	} else if next.CreatedAt.IsZero() {
		next.CreatedAt = e.UpdatedAt
	}
	r.rows[e.UserID] = next
	return nil
}

func (r *MemoryRepository) Disable(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[userID]
	if !ok || !cur.Enabled {
		return domain.ErrNotEnabled
	}
	cur.EncryptedSecret = ""
	cur.BackupCodes = nil
	cur.UsedBackupCodes = nil
	cur.Enabled = false
	cur.VerifiedAt = nil
	cur.UpdatedAt = at
	return nil
}

func (r *MemoryRepository) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[userID]
	if !ok || !cur.Enabled {
		return domain.ErrNotEnabled
	}
	cur.BackupCodes = append([]string(nil), hashes...)
	cur.UsedBackupCodes = nil
	cur.UpdatedAt = at
	return nil
}

func (r *MemoryRepository) ConsumeBackupCode(ctx context.Context, userID, hash string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[userID]
	if !ok || !cur.Enabled {
		return 0, domain.ErrBackupCodeUsed
	}
	for i, h := range cur.BackupCodes {
		if h != hash {
			continue
		}
		cur.BackupCodes = append(cur.BackupCodes[:i:i], cur.BackupCodes[i+1:]...)
		cur.UsedBackupCodes = append(cur.UsedBackupCodes, hash)
		cur.UpdatedAt = r.clock.Now()
		return len(cur.BackupCodes), nil
	}
	return 0, domain.ErrBackupCodeUsed
}
