package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SessionState is a node of the session state machine.
type SessionState string

const (
	SessionUnauthenticated SessionState = "unauthenticated"
	SessionAuthenticating  SessionState = "authenticating"
	SessionReady           SessionState = "ready"
	SessionDegraded        SessionState = "degraded"
	SessionLoggedOut       SessionState = "logged_out"
)

// TokenBundle carries the credentials of one authenticated session.
// ExpiresAt is always absolute; relative lifetimes are normalized on the way in.
type TokenBundle struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the bundle carries an access token.
func (b TokenBundle) Valid() bool {
	return strings.TrimSpace(b.AccessToken) != ""
}

// CanRefresh reports whether a refresh can be scheduled for the bundle.
func (b TokenBundle) CanRefresh() bool {
	return b.RefreshToken != "" && !b.ExpiresAt.IsZero()
}

// TokenResponse is the wire shape shared by the redirect fragment, the
// persisted bundle and the refresh endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // epoch seconds
	ExpiresIn    int64  `json:"expires_in,omitempty"` // seconds from now
	Error        string `json:"error,omitempty"`
}

// Bundle normalizes the response into a TokenBundle. expires_at wins over
// expires_in when both are present.
func (r TokenResponse) Bundle(now time.Time) TokenBundle {
	b := TokenBundle{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	switch {
	case r.ExpiresAt > 0:
		b.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		b.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second).Truncate(time.Second)
	}
	return b
}

// ParseTokenFragment extracts a TokenBundle from a redirect URL fragment such
// as "access_token=..&refresh_token=..&expires_at=..". A leading '#' is allowed.
func ParseTokenFragment(fragment string, now time.Time) (TokenBundle, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(strings.TrimSpace(fragment), "#"))
	if err != nil {
		return TokenBundle{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	resp := TokenResponse{
		AccessToken:  values.Get("access_token"),
		RefreshToken: values.Get("refresh_token"),
	}
	if raw := values.Get("expires_at"); raw != "" {
		if resp.ExpiresAt, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return TokenBundle{}, fmt.Errorf("%w: expires_at %q", ErrInvalidToken, raw)
		}
	}
	if raw := values.Get("expires_in"); raw != "" {
		if resp.ExpiresIn, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return TokenBundle{}, fmt.Errorf("%w: expires_in %q", ErrInvalidToken, raw)
		}
	}

	bundle := resp.Bundle(now)
	if !bundle.Valid() {
		return TokenBundle{}, fmt.Errorf("%w: missing access_token", ErrInvalidToken)
	}
	return bundle, nil
}

// RefreshDelay returns how long to wait before refreshing so that the refresh
// happens guard before expiry. It never returns a negative duration.
func RefreshDelay(expiresAt time.Time, now time.Time, guard time.Duration) time.Duration {
	delay := expiresAt.Sub(now) - guard
	if delay < 0 {
		return 0
	}
	return delay
}
