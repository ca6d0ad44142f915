package repository

import (
	"context"
	"time"

	"coaching-platform/backend/internal/db"
	"coaching-platform/backend/internal/session/domain"
)

// PostgresRepository stores MFA sessions in mfa_sessions.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a session repository that uses pool for persistence.
func NewPostgresRepository(pool db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

// Get returns the session for tokenHash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Get(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRow(ctx,
		`SELECT token_hash, user_id, verified, created_at, expires_at FROM mfa_sessions WHERE token_hash = $1`,
		tokenHash).Scan(&s.TokenHash, &s.UserID, &s.Verified, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO mfa_sessions (token_hash, user_id, verified, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		s.TokenHash, s.UserID, s.Verified, s.CreatedAt, s.ExpiresAt)
	return err
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, tokenHash string, expiresAt, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE mfa_sessions SET verified = TRUE, expires_at = $2
		WHERE token_hash = $1 AND verified = FALSE AND expires_at >= $3`,
		tokenHash, expiresAt, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM mfa_sessions WHERE token_hash = $1`, tokenHash)
	return err
}
