// Package service manages MFA sessions: short-lived tokens that carry a login attempt from
// "password verified" to "MFA complete".
package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"coaching-platform/backend/internal/platform/clock"
	"coaching-platform/backend/internal/security"
	"coaching-platform/backend/internal/session/domain"
)

// Default lifetimes for temporary (MFA pending) and full (MFA complete) sessions.
const (
	DefaultTempTTL = 10 * time.Minute
	DefaultFullTTL = 60 * time.Minute
)

const tokenBytes = 32

// Repository is the session persistence the manager needs.
type Repository interface {
	Get(ctx context.Context, tokenHash string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	MarkVerified(ctx context.Context, tokenHash string, expiresAt, now time.Time) (bool, error)
	Delete(ctx context.Context, tokenHash string) error
}

// Manager creates, validates and completes MFA sessions.
type Manager struct {
	repo    Repository
	tempTTL time.Duration
	fullTTL time.Duration
	clock   clock.Clock
	rand    io.Reader
	logger  *zap.Logger
}

// NewManager returns a Manager. Non-positive TTLs use the defaults.
func NewManager(repo Repository, tempTTL, fullTTL time.Duration, c clock.Clock, rand io.Reader, logger *zap.Logger) *Manager {
	if tempTTL <= 0 {
		tempTTL = DefaultTempTTL
	}
	if fullTTL <= 0 {
		fullTTL = DefaultFullTTL
	}
	if c == nil {
		c = clock.System
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{repo: repo, tempTTL: tempTTL, fullTTL: fullTTL, clock: c, rand: rand, logger: logger}
}

// Create starts an unverified session for userID and returns its token. Temporary sessions get
// the short lifetime.
func (m *Manager) Create(ctx context.Context, userID string, temporary bool) (string, *domain.Session, error) {
	suffix, err := security.RandomHex(m.rand, tokenBytes)
	if err != nil {
		return "", nil, err
	}
	token := domain.TokenPrefix + suffix
	ttl := m.fullTTL
	if temporary {
		ttl = m.tempTTL
	}
	now := m.clock.Now()
	s := &domain.Session{
		TokenHash: security.HashToken(token),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := m.repo.Create(ctx, s); err != nil {
		return "", nil, fmt.Errorf("create mfa session: %w", err)
	}
	return token, s, nil
}

// Validate returns the live session for token.
func (m *Manager) Validate(ctx context.Context, token string) (*domain.Session, error) {
	if !domain.WellFormedToken(token) {
		return nil, domain.ErrMalformedToken
	}
	return m.load(ctx, security.HashToken(token))
}

// Complete marks the session verified and extends it to the full lifetime. Completing a
// verified session succeeds without changing it.
func (m *Manager) Complete(ctx context.Context, token string) (*domain.Session, error) {
	if !domain.WellFormedToken(token) {
		return nil, domain.ErrMalformedToken
	}
	hash := security.HashToken(token)
	s, err := m.load(ctx, hash)
	if err != nil {
		return nil, err
	}
	if s.Verified {
		return s, nil
	}
	now := m.clock.Now()
	expiresAt := now.Add(m.fullTTL)
	changed, err := m.repo.MarkVerified(ctx, hash, expiresAt, now)
	if err != nil {
		return nil, fmt.Errorf("complete mfa session: %w", err)
	}
	if changed {
		s.Verified = true
		s.ExpiresAt = expiresAt
		return s, nil
	}
	// Lost a race with another Complete, or expired in between.
	return m.load(ctx, hash)
}

func (m *Manager) load(ctx context.Context, hash string) (*domain.Session, error) {
	s, err := m.repo.Get(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("get mfa session: %w", err)
	}
	if s == nil {
		return nil, domain.ErrNotFound
	}
	if s.Expired(m.clock.Now()) {
		if err := m.repo.Delete(ctx, hash); err != nil {
			m.logger.Warn("expired mfa session cleanup failed", zap.Error(err))
		}
		return nil, domain.ErrExpired
	}
	return s, nil
}
