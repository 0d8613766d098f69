// Package auth obtains and refreshes Spotify access tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

// Scopes needed to read and control playback.
var Scopes = []string{
	"streaming",
	"user-read-email",
	"user-read-private",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
}

// Config holds the OAuth application settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	// RefreshURL is the relay endpoint used when no client secret is set.
	RefreshURL string
}

// OAuthConfig builds the oauth2 configuration.
func (c Config) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// NewRefresher picks the refresh strategy: the token endpoint directly when
// a client secret is configured, the relay otherwise.
func NewRefresher(cfg Config, httpClient *http.Client) (ports.TokenRefresher, error) {
	if cfg.ClientSecret != "" {
		return NewOAuthRefresher(cfg.OAuthConfig(), httpClient), nil
	}
	if cfg.RefreshURL == "" {
		return nil, errors.New("auth: either a client secret or a refresh url is required")
	}
	return NewRelayRefresher(cfg.RefreshURL, httpClient), nil
}

// OAuthRefresher refreshes through the provider's token endpoint.
type OAuthRefresher struct {
	cfg        *oauth2.Config
	httpClient *http.Client
}

// compile-time interface assertion
var _ ports.TokenRefresher = (*OAuthRefresher)(nil)

// NewOAuthRefresher constructs an OAuthRefresher. httpClient may be nil.
func NewOAuthRefresher(cfg *oauth2.Config, httpClient *http.Client) *OAuthRefresher {
	return &OAuthRefresher{cfg: cfg, httpClient: httpClient}
}

func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (domain.TokenBundle, error) {
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	// An expired seed token forces the source to hit the endpoint.
	seed := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	tok, err := r.cfg.TokenSource(ctx, seed).Token()
	if err != nil {
		return domain.TokenBundle{}, refreshFailure(err)
	}
	return bundleFromToken(tok, refreshToken), nil
}

// bundleFromToken converts an oauth2 token. An unrotated refresh token comes
// back as the seed; it is reported as empty so callers keep their own.
func bundleFromToken(tok *oauth2.Token, seed string) domain.TokenBundle {
	refresh := tok.RefreshToken
	if refresh == seed {
		refresh = ""
	}
	return domain.TokenBundle{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    tok.Expiry,
	}
}

func refreshFailure(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		reason := retrieveErr.ErrorCode
		if reason == "" {
			reason = retrieveErr.ErrorDescription
		}
		return fmt.Errorf("auth: %w", ports.RefreshError{Status: status, Reason: reason})
	}
	return fmt.Errorf("auth: refresh: %w", err)
}
