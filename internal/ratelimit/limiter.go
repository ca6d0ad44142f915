// Package ratelimit counts MFA verification attempts per (user, action) in fixed windows.
// Counters live in memory, Redis or Postgres; every backend performs its read-modify-write
// atomically so two concurrent requests cannot both slip under the limit.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"coaching-platform/backend/internal/platform/clock"
)

// Action names the verification channel being limited. Each has its own budget.
type Action string

const (
	ActionTOTP       Action = "totp"
	ActionBackupCode Action = "backup_code"
)

// Defaults applied when NewLimiter receives non-positive values.
const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 5 * time.Minute
)

var errInvalidWindow = errors.New("ratelimit: invalid window")

// Key identifies one counter.
type Key struct {
	UserID string
	Action Action
}

func (k Key) String() string {
	return k.UserID + ":" + string(k.Action)
}

// Counter is the storage side of the limiter.
//
// Hit records one attempt at now. If no window is active (none exists, or now is past
// windowStart+window) a new window starts with count 1. Otherwise the count is incremented
// unless it already reached limit, in which case the attempt is rejected and the count is left
// at limit. The returned count is the number of attempts in the active window.
type Counter interface {
	Hit(ctx context.Context, key Key, now time.Time, limit int, window time.Duration) (count int, allowed bool, err error)
	Reset(ctx context.Context, key Key) error
}

// Result is the outcome of a Check.
type Result struct {
	Allowed   bool
	Remaining int
}

// Limiter applies a fixed-window budget on top of a Counter.
type Limiter struct {
	counter Counter
	max     int
	window  time.Duration
	clock   clock.Clock
	logger  *zap.Logger
}

// NewLimiter returns a Limiter allowing max attempts per window. A nil clock uses the system
// clock; a nil logger discards output.
func NewLimiter(counter Counter, max int, window time.Duration, c clock.Clock, logger *zap.Logger) *Limiter {
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if c == nil {
		c = clock.System
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{counter: counter, max: max, window: window, clock: c, logger: logger}
}

// Check records an attempt for (userID, action). A counter failure denies the attempt.
func (l *Limiter) Check(ctx context.Context, userID string, action Action) Result {
	key := Key{UserID: userID, Action: action}
	count, allowed, err := l.counter.Hit(ctx, key, l.clock.Now(), l.max, l.window)
	if err != nil {
		l.logger.Warn("rate limit counter unavailable, denying attempt",
			zap.String("user_id", userID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return Result{Allowed: false, Remaining: 0}
	}
	if !allowed {
		return Result{Allowed: false, Remaining: 0}
	}
	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining}
}

// Reset clears the counter for (userID, action), typically after a successful verification.
// Failures are logged; a stale counter only costs the user attempts.
func (l *Limiter) Reset(ctx context.Context, userID string, action Action) {
	if err := l.counter.Reset(ctx, Key{UserID: userID, Action: action}); err != nil {
		l.logger.Warn("rate limit reset failed",
			zap.String("user_id", userID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}
