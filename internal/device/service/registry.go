// Package service issues and checks trusted-device tokens. A trusted device lets a user skip the
// MFA prompt until the trust expires. The bearer token is returned once and only its hash is kept,
// so reading the device table is not enough to impersonate a device.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coaching-platform/backend/internal/device/domain"
	"coaching-platform/backend/internal/platform/clock"
	"coaching-platform/backend/internal/security"
)

// Trust lifetimes.
const (
	DefaultTTL = 30 * 24 * time.Hour
	MinTTL     = 24 * time.Hour
	MaxTTL     = 365 * 24 * time.Hour
)

// tokenBytes is the entropy of a device token; the token is its hex encoding.
const tokenBytes = 32

// ErrInvalidTTL is returned by NewRegistry for a lifetime outside [MinTTL, MaxTTL].
var ErrInvalidTTL = errors.New("trusted device ttl must be between 1 and 365 days")

// Repository is the device persistence the registry needs.
type Repository interface {
	Get(ctx context.Context, userID, id string) (*domain.TrustedDevice, error)
	ListByUser(ctx context.Context, userID string, now time.Time) ([]*domain.TrustedDevice, error)
	Create(ctx context.Context, d *domain.TrustedDevice) error
	Touch(ctx context.Context, id string, at time.Time, ip, userAgent string) error
	Delete(ctx context.Context, userID, id string) error
}

// DeviceInfo describes the client being trusted. Name is derived from UserAgent when empty.
type DeviceInfo struct {
	Name      string
	IPAddress string
	UserAgent string
}

// IssuedToken is returned once when a device is trusted. Token is never retrievable again.
type IssuedToken struct {
	Token     string
	DeviceID  string
	ExpiresAt time.Time
}

// Registry manages trusted devices.
type Registry struct {
	repo   Repository
	ttl    time.Duration
	clock  clock.Clock
	rand   io.Reader
	logger *zap.Logger
}

// NewRegistry returns a Registry. ttl of zero uses DefaultTTL. A nil clock, rand or logger falls
// back to the system clock, crypto/rand and a no-op logger.
func NewRegistry(repo Repository, ttl time.Duration, c clock.Clock, rand io.Reader, logger *zap.Logger) (*Registry, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if ttl < MinTTL || ttl > MaxTTL {
		return nil, ErrInvalidTTL
	}
	if c == nil {
		c = clock.System
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{repo: repo, ttl: ttl, clock: c, rand: rand, logger: logger}, nil
}

// Trust creates a trusted device for userID and returns it with its bearer token.
func (r *Registry) Trust(ctx context.Context, userID string, info DeviceInfo) (*domain.TrustedDevice, string, error) {
	token, err := security.RandomHex(r.rand, tokenBytes)
	if err != nil {
		return nil, "", err
	}
	id, err := r.newID()
	if err != nil {
		return nil, "", err
	}
	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = domain.NameFromUserAgent(info.UserAgent)
	}
	now := r.clock.Now()
	d := &domain.TrustedDevice{
		ID:         id,
		UserID:     userID,
		TokenHash:  security.HashToken(token),
		Name:       name,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
		CreatedAt:  now,
		LastUsedAt: now,
		ExpiresAt:  now.Add(r.ttl),
	}
	if err := r.repo.Create(ctx, d); err != nil {
		return nil, "", fmt.Errorf("create trusted device: %w", err)
	}
	return d, token, nil
}

// IssueToken trusts the calling client and returns only what the client must keep.
func (r *Registry) IssueToken(ctx context.Context, userID, ip, userAgent string) (*IssuedToken, error) {
	d, token, err := r.Trust(ctx, userID, DeviceInfo{IPAddress: ip, UserAgent: userAgent})
	if err != nil {
		return nil, err
	}
	return &IssuedToken{Token: token, DeviceID: d.ID, ExpiresAt: d.ExpiresAt}, nil
}

// ValidateToken reports whether token proves possession of device deviceID for userID.
// An expired device is deleted and fails. On success last-used is refreshed and the IP and
// user agent are updated when supplied.
func (r *Registry) ValidateToken(ctx context.Context, userID, deviceID, token, ip, userAgent string) (bool, error) {
	if userID == "" || deviceID == "" || token == "" {
		return false, nil
	}
	d, err := r.repo.Get(ctx, userID, deviceID)
	if err != nil {
		return false, fmt.Errorf("get trusted device: %w", err)
	}
	if d == nil || !security.TokenHashEqual(token, d.TokenHash) {
		return false, nil
	}
	now := r.clock.Now()
	if d.Expired(now) {
		r.dropExpired(ctx, d)
		return false, nil
	}
	if err := r.repo.Touch(ctx, d.ID, now, ip, userAgent); err != nil {
		r.logger.Warn("trusted device touch failed", zap.String("device_id", d.ID), zap.Error(err))
	}
	return true, nil
}

// IsTrusted reports whether userID has an unexpired trusted device deviceID. It does not prove
// possession of the token; use ValidateToken for that.
func (r *Registry) IsTrusted(ctx context.Context, userID, deviceID string) (bool, error) {
	d, err := r.repo.Get(ctx, userID, deviceID)
	if err != nil {
		return false, fmt.Errorf("get trusted device: %w", err)
	}
	if d == nil {
		return false, nil
	}
	if d.Expired(r.clock.Now()) {
		r.dropExpired(ctx, d)
		return false, nil
	}
	return true, nil
}

// Revoke deletes the device. Returns domain.ErrNotFound when the user has no such device.
func (r *Registry) Revoke(ctx context.Context, userID, deviceID string) error {
	return r.repo.Delete(ctx, userID, deviceID)
}

// List returns the user's unexpired devices, newest first.
func (r *Registry) List(ctx context.Context, userID string) ([]*domain.TrustedDevice, error) {
	return r.repo.ListByUser(ctx, userID, r.clock.Now())
}

func (r *Registry) dropExpired(ctx context.Context, d *domain.TrustedDevice) {
	if err := r.repo.Delete(ctx, d.UserID, d.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		r.logger.Warn("expired trusted device cleanup failed", zap.String("device_id", d.ID), zap.Error(err))
	}
}

func (r *Registry) newID() (string, error) {
	if r.rand == nil {
		return uuid.NewString(), nil
	}
	id, err := uuid.NewRandomFromReader(r.rand)
	if err != nil {
		return "", fmt.Errorf("device id: %w", err)
	}
	return id.String(), nil
}
