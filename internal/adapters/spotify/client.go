// Package spotify drives a Spotify Connect device through the Web API.
package spotify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

const (
	defaultPollInterval = time.Second
	defaultHTTPTimeout  = 10 * time.Second
)

// Config configures the player adapter.
type Config struct {
	// BaseURL overrides the Web API root, mainly for tests.
	BaseURL string
	// DeviceName selects the Connect device to drive. Empty picks the
	// active device, or the first one listed.
	DeviceName   string
	PollInterval time.Duration
	// Transport is the base round tripper under the bearer transport.
	Transport http.RoundTripper
	Timeout   time.Duration
}

// Factory builds players bound to a session's token.
type Factory struct {
	cfg    Config
	logger *zap.Logger
}

// compile-time interface assertion
var _ ports.PlayerFactory = (*Factory)(nil)

// NewFactory constructs a Factory.
func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{cfg: cfg, logger: logger.Named("spotify")}
}

// NewPlayer returns an unconnected player. Every API call reads the token
// through token, so a refreshed token is used without rebuilding the player.
func (f *Factory) NewPlayer(token ports.TokenFunc, listener ports.EventListener) (ports.Player, error) {
	if token == nil {
		return nil, errors.New("spotify adapter: token source is required")
	}
	if listener == nil {
		listener = func(domain.PlayerEvent) {}
	}

	httpClient := &http.Client{
		Timeout: f.cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: tokenSource{token: token},
			Base:   f.cfg.Transport,
		},
	}

	opts := []spotify.ClientOption{spotify.WithRetry(true)}
	if f.cfg.BaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(strings.TrimRight(f.cfg.BaseURL, "/")+"/"))
	}

	return &Player{
		api:        spotify.New(httpClient, opts...),
		listener:   listener,
		deviceName: f.cfg.DeviceName,
		poll:       f.cfg.PollInterval,
		logger:     f.logger,
	}, nil
}

// tokenSource adapts a TokenFunc to oauth2. Tokens are never cached here;
// the session owns expiry and refresh.
type tokenSource struct {
	token ports.TokenFunc
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	access := s.token()
	if access == "" {
		return nil, fmt.Errorf("spotify adapter: %w", domain.ErrNotAuthenticated)
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}, nil
}
