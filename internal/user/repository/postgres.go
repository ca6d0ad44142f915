package repository

import (
	"context"

	"coaching-platform/backend/internal/db"
	"coaching-platform/backend/internal/user/domain"
)

// PostgresRepository reads profiles from user_profiles.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a profile repository that uses pool for persistence.
func NewPostgresRepository(pool db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

// GetByID returns the profile for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.QueryRow(ctx,
		`SELECT id, email, display_name, created_at FROM user_profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.Email, &p.DisplayName, &p.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_profiles (id, email, display_name, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, display_name = EXCLUDED.display_name`,
		p.ID, p.Email, p.DisplayName, p.CreatedAt)
	return err
}
