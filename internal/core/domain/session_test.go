package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokenFragment(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name       string
		fragment   string
		wantErr    error
		wantAccess string
		wantExpiry time.Time
	}{
		{
			name:       "absolute expiry",
			fragment:   "#access_token=abc&refresh_token=def&expires_at=1700003600",
			wantAccess: "abc",
			wantExpiry: time.Unix(1_700_003_600, 0),
		},
		{
			name:       "relative expiry",
			fragment:   "access_token=abc&expires_in=3600",
			wantAccess: "abc",
			wantExpiry: now.Add(time.Hour),
		},
		{
			name:     "missing access token",
			fragment: "refresh_token=def",
			wantErr:  ErrInvalidToken,
		},
		{
			name:     "bad expiry",
			fragment: "access_token=abc&expires_at=soon",
			wantErr:  ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTokenFragment(tt.fragment, now)
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccess, got.AccessToken)
			assert.True(t, tt.wantExpiry.Equal(got.ExpiresAt), "expiry %v, want %v", got.ExpiresAt, tt.wantExpiry)
		})
	}
}

func TestTokenResponse_BundlePrefersExpiresAt(t *testing.T) {
	now := time.Unix(1000, 0)
	b := TokenResponse{AccessToken: "a", ExpiresAt: 5000, ExpiresIn: 10}.Bundle(now)
	assert.True(t, b.ExpiresAt.Equal(time.Unix(5000, 0)))
}

func TestRefreshDelay(t *testing.T) {
	now := time.Unix(10_000, 0)

	assert.Equal(t, 100*time.Second, RefreshDelay(now.Add(400*time.Second), now, 300*time.Second))
	assert.Equal(t, time.Duration(0), RefreshDelay(now.Add(200*time.Second), now, 300*time.Second))
	assert.Equal(t, time.Duration(0), RefreshDelay(now.Add(-time.Hour), now, 300*time.Second))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00", FormatDuration(0))
	assert.Equal(t, "3:05", FormatDuration(185000))
	assert.Equal(t, "12:00", FormatDuration(720000))
}
