package repository

import (
	"context"
	"time"

	"coaching-platform/backend/internal/db"
	"coaching-platform/backend/internal/mfa/domain"
)

// PostgresRepository stores enrollments in mfa_enrollments.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an enrollment repository over pool.
func NewPostgresRepository(pool db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

const selectEnrollment = `SELECT user_id, encrypted_secret, backup_codes, used_backup_codes, enabled, verified_at, created_at, updated_at
FROM mfa_enrollments WHERE user_id = $1`

// GetByUserID returns the enrollment for userID, or nil if not found.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := r.db.QueryRow(ctx, selectEnrollment, userID).Scan(
		&e.UserID, &e.EncryptedSecret, &e.BackupCodes, &e.UsedBackupCodes,
		&e.Enabled, &e.VerifiedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

const enableEnrollment = `INSERT INTO mfa_enrollments
    (user_id, encrypted_secret, backup_codes, used_backup_codes, enabled, verified_at, created_at, updated_at)
VALUES ($1, $2, $3, '{}', TRUE, $4, $5, $5)
ON CONFLICT (user_id) DO UPDATE SET
    encrypted_secret = EXCLUDED.encrypted_secret,
    backup_codes = EXCLUDED.backup_codes,
    used_backup_codes = '{}',
    enabled = TRUE,
    verified_at = EXCLUDED.verified_at,
    updated_at = EXCLUDED.updated_at
WHERE mfa_enrollments.enabled = FALSE`

// Enable upserts the enrollment only when it is not already enabled.
func (r *PostgresRepository) Enable(ctx context.Context, e *domain.Enrollment) error {
	tag, err := r.db.Exec(ctx, enableEnrollment, e.UserID, e.EncryptedSecret, e.BackupCodes, e.VerifiedAt, e.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyEnabled
	}
	return nil
}

const disableEnrollment = `UPDATE mfa_enrollments
SET encrypted_secret = '', backup_codes = '{}', used_backup_codes = '{}', enabled = FALSE, verified_at = NULL, updated_at = $2
WHERE user_id = $1 AND enabled`

// Disable clears the secret and codes of an enabled enrollment.
func (r *PostgresRepository) Disable(ctx context.Context, userID string, at time.Time) error {
	tag, err := r.db.Exec(ctx, disableEnrollment, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotEnabled
	}
	return nil
}

const replaceBackupCodes = `UPDATE mfa_enrollments
SET backup_codes = $2, used_backup_codes = '{}', updated_at = $3
WHERE user_id = $1 AND enabled`

// ReplaceBackupCodes installs a fresh code set, invalidating every previous code.
func (r *PostgresRepository) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string, at time.Time) error {
	tag, err := r.db.Exec(ctx, replaceBackupCodes, userID, hashes, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotEnabled
	}
	return nil
}

const consumeBackupCode = `UPDATE mfa_enrollments
SET backup_codes = array_remove(backup_codes, $2),
    used_backup_codes = array_append(used_backup_codes, $2),
    updated_at = now()
WHERE user_id = $1 AND enabled AND $2 = ANY(backup_codes)
RETURNING cardinality(backup_codes)`

// ConsumeBackupCode is a compare-and-swap on the unused set: the row only changes while hash is
// still present, so two concurrent redemptions cannot both succeed.
func (r *PostgresRepository) ConsumeBackupCode(ctx context.Context, userID, hash string) (int, error) {
	var remaining int
	if err := r.db.QueryRow(ctx, consumeBackupCode, userID, hash).Scan(&remaining); err != nil {
		if db.IsNoRows(err) {
			return 0, domain.ErrBackupCodeUsed
		}
		return 0, err
	}
	return remaining, nil
}
