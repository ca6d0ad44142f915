package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"coaching-platform/backend/internal/db"
)

// PostgresCounter keeps counters in mfa_rate_limits. Each Hit runs in a transaction that locks
// the (user, action) row, so concurrent hits for the same key serialize.
type PostgresCounter struct {
	db db.DBTX
}

// NewPostgresCounter returns a counter backed by pool.
func NewPostgresCounter(pool db.DBTX) *PostgresCounter {
	return &PostgresCounter{db: pool}
}

func (c *PostgresCounter) Hit(ctx context.Context, key Key, now time.Time, limit int, length time.Duration) (int, bool, error) {
	if length <= 0 {
		return 0, false, errInvalidWindow
	}
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("ratelimit: begin: %w", err)
	}
	count, allowed, err := hitTx(ctx, tx, key, now, limit, length)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("ratelimit: commit: %w", err)
	}
	return count, allowed, nil
}

func hitTx(ctx context.Context, tx pgx.Tx, key Key, now time.Time, limit int, length time.Duration) (int, bool, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO mfa_rate_limits (user_id, action, attempts, window_start)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (user_id, action) DO NOTHING`,
		key.UserID, string(key.Action), now)
	if err != nil {
		return 0, false, fmt.Errorf("ratelimit: ensure row: %w", err)
	}

	var attempts int
	var start time.Time
	err = tx.QueryRow(ctx, `
		SELECT attempts, window_start FROM mfa_rate_limits
		WHERE user_id = $1 AND action = $2
		FOR UPDATE`,
		key.UserID, string(key.Action)).Scan(&attempts, &start)
	if err != nil {
		return 0, false, fmt.Errorf("ratelimit: lock row: %w", err)
	}

	switch {
	case attempts == 0 || now.After(start.Add(length)):
		attempts, start = 1, now
	case attempts >= limit:
		return attempts, false, nil
	default:
		attempts++
	}

	_, err = tx.Exec(ctx, `
		UPDATE mfa_rate_limits SET attempts = $3, window_start = $4
		WHERE user_id = $1 AND action = $2`,
		key.UserID, string(key.Action), attempts, start)
	if err != nil {
		return 0, false, fmt.Errorf("ratelimit: update: %w", err)
	}
	return attempts, true, nil
}

func (c *PostgresCounter) Reset(ctx context.Context, key Key) error {
	_, err := c.db.Exec(ctx,
		`DELETE FROM mfa_rate_limits WHERE user_id = $1 AND action = $2`,
		key.UserID, string(key.Action))
	if err != nil {
		return fmt.Errorf("ratelimit: reset: %w", err)
	}
	return nil
}
