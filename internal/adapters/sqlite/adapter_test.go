package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
)

func newMemoryAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := NewAdapter(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAdapter_TokensRoundTrip(t *testing.T) {
	ctx := context.Background()
	expires := time.Unix(1_900_000_000, 0)

	tests := []struct {
		name   string
		bundle domain.TokenBundle
	}{
		{
			name:   "full bundle",
			bundle: domain.TokenBundle{AccessToken: "at", RefreshToken: "rt", ExpiresAt: expires},
		},
		{
			name:   "access token only",
			bundle: domain.TokenBundle{AccessToken: "at"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newMemoryAdapter(t)

			require.NoError(t, a.SaveTokens(ctx, tt.bundle))
			got, err := a.LoadTokens(ctx)
			require.NoError(t, err)

			assert.Equal(t, tt.bundle.AccessToken, got.AccessToken)
			assert.Equal(t, tt.bundle.RefreshToken, got.RefreshToken)
			assert.True(t, tt.bundle.ExpiresAt.Equal(got.ExpiresAt), "expires %v != %v", tt.bundle.ExpiresAt, got.ExpiresAt)
		})
	}
}

func TestAdapter_SaveTokensReplacesStaleKeys(t *testing.T) {
	ctx := context.Background()
	a := newMemoryAdapter(t)

	require.NoError(t, a.SaveTokens(ctx, domain.TokenBundle{
		AccessToken:  "old",
		RefreshToken: "old-rt",
		ExpiresAt:    time.Unix(1_800_000_000, 0),
	}))
	require.NoError(t, a.SaveTokens(ctx, domain.TokenBundle{AccessToken: "new"}))

	got, err := a.LoadTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
	assert.Empty(t, got.RefreshToken)
	assert.True(t, got.ExpiresAt.IsZero())
}

func TestAdapter_SaveTokensRejectsEmptyBundle(t *testing.T) {
	a := newMemoryAdapter(t)
	err := a.SaveTokens(context.Background(), domain.TokenBundle{RefreshToken: "rt"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestAdapter_LoadTokensEmpty(t *testing.T) {
	a := newMemoryAdapter(t)
	_, err := a.LoadTokens(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdapter_ClearTokens(t *testing.T) {
	ctx := context.Background()
	a := newMemoryAdapter(t)

	require.NoError(t, a.SaveTokens(ctx, domain.TokenBundle{AccessToken: "at", RefreshToken: "rt"}))
	require.NoError(t, a.ClearTokens(ctx))

	_, err := a.LoadTokens(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// clearing an empty store is fine
	assert.NoError(t, a.ClearTokens(ctx))
}

func TestAdapter_MigrationsAreIdempotent(t *testing.T) {
	a := newMemoryAdapter(t)
	assert.NoError(t, runMigrations(a.db))
}

func TestAdapter_LyricsCache(t *testing.T) {
	ctx := context.Background()
	a := newMemoryAdapter(t)
	a.now = func() time.Time { return time.UnixMilli(1_700_000_000_123) }

	_, err := a.GetLyrics(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, a.PutLyrics(ctx, "t1", "first"))
	require.NoError(t, a.PutLyrics(ctx, "t1", "second"))

	got, err := a.GetLyrics(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	var fetchedAt int64
	require.NoError(t, a.db.QueryRow("SELECT fetched_at FROM lyrics_cache WHERE track_id = ?", "t1").Scan(&fetchedAt))
	assert.Equal(t, int64(1_700_000_000_123), fetchedAt)

	assert.Error(t, a.PutLyrics(ctx, "", "x"))
}

func TestAdapter_SaveTokensRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM session_tokens").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("REPLACE INTO session_tokens").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	a := newAdapter(db)
	err = a.SaveTokens(context.Background(), domain.TokenBundle{AccessToken: "at", RefreshToken: "rt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_ClearTokensRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM session_tokens").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	a := newAdapter(db)
	err = a.ClearTokens(context.Background())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_LoadTokensQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name, value FROM session_tokens").WillReturnError(errors.New("boom"))

	_, err = newAdapter(db).LoadTokens(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_LoadTokensBadExpiry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name", "value"}).
		AddRow("access_token", "at").
		AddRow("expires_at", "soon")
	mock.ExpectQuery("SELECT name, value FROM session_tokens").WillReturnRows(rows)

	_, err = newAdapter(db).LoadTokens(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
