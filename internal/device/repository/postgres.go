package repository

import (
	"context"
	"time"

	"coaching-platform/backend/internal/db"
	"coaching-platform/backend/internal/device/domain"
)

// PostgresRepository stores trusted devices in trusted_devices.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a device repository that uses pool for persistence.
func NewPostgresRepository(pool db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

const deviceColumns = `id, user_id, token_hash, name, ip, user_agent, created_at, last_used_at, expires_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (*domain.TrustedDevice, error) {
	var d domain.TrustedDevice
	err := row.Scan(&d.ID, &d.UserID, &d.TokenHash, &d.Name, &d.IPAddress, &d.UserAgent,
		&d.CreatedAt, &d.LastUsedAt, &d.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Get returns the device for (userID, id), or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*domain.TrustedDevice, error) {
	d, err := scanDevice(r.db.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM trusted_devices WHERE user_id = $1 AND id = $2`, userID, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// ListByUser returns the unexpired devices for userID. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, now time.Time) ([]*domain.TrustedDevice, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+deviceColumns+` FROM trusted_devices
		WHERE user_id = $1 AND expires_at >= $2
		ORDER BY created_at DESC`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.TrustedDevice
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Create persists the device. The device must have ID and TokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.TrustedDevice) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO trusted_devices (`+deviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.UserID, d.TokenHash, d.Name, d.IPAddress, d.UserAgent, d.CreatedAt, d.LastUsedAt, d.ExpiresAt)
	return err
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time, ip, userAgent string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE trusted_devices SET
			last_used_at = $2,
			ip = COALESCE(NULLIF($3, ''), ip),
			user_agent = COALESCE(NULLIF($4, ''), user_agent)
		WHERE id = $1`, id, at, ip, userAgent)
	return err
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM trusted_devices WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
