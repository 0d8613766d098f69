package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

func tokenServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(tokenURL string) Config {
	return Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://127.0.0.1:8888/callback",
		AuthURL:      "https://accounts.example/authorize",
		TokenURL:     tokenURL,
	}
}

func TestOAuthRefresher(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantAccess  string
		wantRefresh string
		wantStatus  int
		wantReason  string
	}{
		{
			name:       "unrotated refresh token",
			status:     http.StatusOK,
			body:       `{"access_token":"a2","token_type":"Bearer","expires_in":3600}`,
			wantAccess: "a2",
		},
		{
			name:        "rotated refresh token",
			status:      http.StatusOK,
			body:        `{"access_token":"a2","token_type":"Bearer","expires_in":3600,"refresh_token":"r2"}`,
			wantAccess:  "a2",
			wantRefresh: "r2",
		},
		{
			name:       "revoked",
			status:     http.StatusBadRequest,
			body:       `{"error":"invalid_grant","error_description":"Refresh token revoked"}`,
			wantStatus: http.StatusBadRequest,
			wantReason: "invalid_grant",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := tokenServer(t, tc.status, tc.body, func(r *http.Request) {
				assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
				assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
			})
			refresher := NewOAuthRefresher(testConfig(ts.URL).OAuthConfig(), ts.Client())

			bundle, err := refresher.Refresh(context.Background(), "r1")
			if tc.wantStatus != 0 {
				require.Error(t, err)
				assert.ErrorIs(t, err, ports.ErrRefreshRejected)
				var refreshErr ports.RefreshError
				require.True(t, errors.As(err, &refreshErr))
				assert.Equal(t, tc.wantStatus, refreshErr.Status)
				assert.Equal(t, tc.wantReason, refreshErr.Reason)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantAccess, bundle.AccessToken)
			assert.Equal(t, tc.wantRefresh, bundle.RefreshToken)
			assert.WithinDuration(t, time.Now().Add(time.Hour), bundle.ExpiresAt, time.Minute)
		})
	}
}

func TestRelayRefresher(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		status     int
		body       string
		want       domain.TokenBundle
		wantReject bool
		wantErr    error
	}{
		{
			name:   "absolute expiry",
			status: http.StatusOK,
			body:   `{"access_token":"a2","refresh_token":"r2","expires_at":1772362800}`,
			want:   domain.TokenBundle{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: time.Unix(1772362800, 0)},
		},
		{
			name:   "relative expiry",
			status: http.StatusOK,
			body:   `{"access_token":"a2","expires_in":3600}`,
			want:   domain.TokenBundle{AccessToken: "a2", ExpiresAt: now.Add(time.Hour)},
		},
		{
			name:       "error body",
			status:     http.StatusOK,
			body:       `{"error":"invalid refresh token"}`,
			wantReject: true,
		},
		{
			name:       "server failure",
			status:     http.StatusInternalServerError,
			body:       `oops`,
			wantReject: true,
		},
		{
			name:    "missing access token",
			status:  http.StatusOK,
			body:    `{"expires_in":3600}`,
			wantErr: domain.ErrInvalidToken,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotToken string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotToken = r.URL.Query().Get("refresh_token")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			refresher := NewRelayRefresher(ts.URL+"/refresh_token", ts.Client())
			refresher.now = func() time.Time { return now }

			bundle, err := refresher.Refresh(context.Background(), "r1")
			assert.Equal(t, "r1", gotToken)
			switch {
			case tc.wantReject:
				assert.ErrorIs(t, err, ports.ErrRefreshRejected)
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tc.want.AccessToken, bundle.AccessToken)
				assert.Equal(t, tc.want.RefreshToken, bundle.RefreshToken)
				assert.True(t, tc.want.ExpiresAt.Equal(bundle.ExpiresAt), "expires at %v, want %v", bundle.ExpiresAt, tc.want.ExpiresAt)
			}
		})
	}
}

func TestNewRefresher(t *testing.T) {
	withSecret, err := NewRefresher(Config{ClientSecret: "s", TokenURL: "http://x"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OAuthRefresher{}, withSecret)

	relay, err := NewRefresher(Config{RefreshURL: "http://relay/refresh_token"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RelayRefresher{}, relay)

	_, err = NewRefresher(Config{}, nil)
	assert.Error(t, err)
}

func TestLoginFlow_Serve(t *testing.T) {
	ts := tokenServer(t, http.StatusOK, `{"access_token":"a1","refresh_token":"r1","token_type":"Bearer","expires_in":3600}`, func(r *http.Request) {
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	flow := NewLoginFlow(testConfig(ts.URL), ts.Client(), zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bundle, err := flow.Serve(ctx, ln, func(authURL string) {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		assert.Equal(t, "client", u.Query().Get("client_id"))
		assert.Contains(t, u.Query().Get("scope"), "user-modify-playback-state")

		go func() {
			callback := "http://" + ln.Addr().String() + "/callback?code=the-code&state=" + url.QueryEscape(u.Query().Get("state"))
			resp, err := http.Get(callback)
			if err == nil {
				resp.Body.Close()
			}
		}()
	})

	require.NoError(t, err)
	assert.Equal(t, "a1", bundle.AccessToken)
	assert.Equal(t, "r1", bundle.RefreshToken)
	assert.False(t, bundle.ExpiresAt.IsZero())
}

func TestLoginFlow_RejectsForeignState(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	flow := NewLoginFlow(testConfig("http://unused"), nil, zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = flow.Serve(ctx, ln, func(string) {
		go func() {
			resp, err := http.Get("http://" + ln.Addr().String() + "/callback?code=x&state=forged")
			if err == nil {
				resp.Body.Close()
			}
		}()
	})
	assert.ErrorIs(t, err, ErrStateMismatch)
}
