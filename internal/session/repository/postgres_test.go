package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coaching-platform/backend/internal/session/domain"
	"coaching-platform/backend/internal/session/repository"
)

func TestPostgresRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := repository.NewPostgresRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT token_hash, user_id, verified").
		WithArgs("h1").
		WillReturnRows(pgxmock.NewRows([]string{"token_hash", "user_id", "verified", "created_at", "expires_at"}).
			AddRow("h1", "u1", false, now, now.Add(10*time.Minute)))
	s, err := repo.Get(context.Background(), "h1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "u1", s.UserID)
	assert.False(t, s.Verified)

	mock.ExpectQuery("SELECT token_hash, user_id, verified").
		WithArgs("h2").
		WillReturnError(pgx.ErrNoRows)
	s, err = repo.Get(context.Background(), "h2")
	require.NoError(t, err)
	assert.Nil(t, s)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateMarkDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := repository.NewPostgresRepository(mock)
	ctx := context.Background()
	now := time.Now().UTC()
	s := &domain.Session{TokenHash: "h1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute)}

	mock.ExpectExec("INSERT INTO mfa_sessions").
		WithArgs("h1", "u1", false, now, now.Add(10*time.Minute)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Create(ctx, s))

	full := now.Add(time.Hour)
	mock.ExpectExec("UPDATE mfa_sessions SET verified = TRUE").
		WithArgs("h1", full, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	changed, err := repo.MarkVerified(ctx, "h1", full, now)
	require.NoError(t, err)
	assert.True(t, changed)

	mock.ExpectExec("UPDATE mfa_sessions SET verified = TRUE").
		WithArgs("h1", full, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	changed, err = repo.MarkVerified(ctx, "h1", full, now)
	require.NoError(t, err)
	assert.False(t, changed)

	mock.ExpectExec("DELETE FROM mfa_sessions").
		WithArgs("h1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(ctx, "h1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
