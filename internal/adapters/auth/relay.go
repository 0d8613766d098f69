package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

// RelayRefresher refreshes through a backend that holds the client secret:
// GET {url}?refresh_token=... answers with a token response.
type RelayRefresher struct {
	httpClient *http.Client
	endpoint   string
	now        func() time.Time
}

// compile-time interface assertion
var _ ports.TokenRefresher = (*RelayRefresher)(nil)

// NewRelayRefresher constructs a RelayRefresher. httpClient may be nil.
func NewRelayRefresher(endpoint string, httpClient *http.Client) *RelayRefresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RelayRefresher{httpClient: httpClient, endpoint: endpoint, now: time.Now}
}

func (r *RelayRefresher) Refresh(ctx context.Context, refreshToken string) (domain.TokenBundle, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return domain.TokenBundle{}, fmt.Errorf("auth: relay url: %w", err)
	}
	q := u.Query()
	q.Set("refresh_token", refreshToken)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.TokenBundle{}, fmt.Errorf("auth: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	// #nosec G107 -- URL comes from configuration
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return domain.TokenBundle{}, fmt.Errorf("auth: relay request: %w", err)
	}
	defer resp.Body.Close()

	var body domain.TokenResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)

	if resp.StatusCode != http.StatusOK || body.Error != "" {
		return domain.TokenBundle{}, fmt.Errorf("auth: %w", ports.RefreshError{Status: resp.StatusCode, Reason: body.Error})
	}
	if decodeErr != nil {
		return domain.TokenBundle{}, fmt.Errorf("auth: decode relay response: %w", decodeErr)
	}

	bundle := body.Bundle(r.now())
	if !bundle.Valid() {
		return domain.TokenBundle{}, fmt.Errorf("auth: relay response: %w", domain.ErrInvalidToken)
	}
	return bundle, nil
}
