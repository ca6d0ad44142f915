package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rateColumns = []string{"attempts", "window_start"}

func expectLock(mock pgxmock.PgxPoolIface, now time.Time, rows *pgxmock.Rows) {
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mfa_rate_limits").
		WithArgs("u1", "totp", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT attempts, window_start FROM mfa_rate_limits").
		WithArgs("u1", "totp").
		WillReturnRows(rows)
}

func TestPostgresCounter_Hit(t *testing.T) {
	key := Key{UserID: "u1", Action: ActionTOTP}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("fresh row starts window", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expectLock(mock, now, pgxmock.NewRows(rateColumns).AddRow(0, now))
		mock.ExpectExec("UPDATE mfa_rate_limits").
			WithArgs("u1", "totp", 1, now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		count, ok, err := NewPostgresCounter(mock).Hit(context.Background(), key, now, 5, 5*time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("increments inside window", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		start := now.Add(-time.Minute)
		expectLock(mock, now, pgxmock.NewRows(rateColumns).AddRow(2, start))
		mock.ExpectExec("UPDATE mfa_rate_limits").
			WithArgs("u1", "totp", 3, start).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		count, ok, err := NewPostgresCounter(mock).Hit(context.Background(), key, now, 5, 5*time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("at limit is rejected without update", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expectLock(mock, now, pgxmock.NewRows(rateColumns).AddRow(5, now.Add(-time.Minute)))
		mock.ExpectCommit()

		count, ok, err := NewPostgresCounter(mock).Hit(context.Background(), key, now, 5, 5*time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 5, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired window restarts", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expectLock(mock, now, pgxmock.NewRows(rateColumns).AddRow(5, now.Add(-6*time.Minute)))
		mock.ExpectExec("UPDATE mfa_rate_limits").
			WithArgs("u1", "totp", 1, now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		count, ok, err := NewPostgresCounter(mock).Hit(context.Background(), key, now, 5, 5*time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure rolls back", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO mfa_rate_limits").
			WithArgs("u1", "totp", now).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, ok, err := NewPostgresCounter(mock).Hit(context.Background(), key, now, 5, 5*time.Minute)
		assert.Error(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresCounter_Reset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM mfa_rate_limits").
		WithArgs("u1", "backup_code").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err = NewPostgresCounter(mock).Reset(context.Background(), Key{UserID: "u1", Action: ActionBackupCode})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
