// Package lyrics fetches plain-text lyrics from the lyrics HTTP endpoint.
package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

const maxBodyBytes = 1 << 20

// Config configures the lyrics client.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client is an HTTP client for the lyrics endpoint.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxRetries  int
	baseBackoff time.Duration
	logger      *zap.Logger
}

// compile-time interface assertion
var _ ports.LyricsProvider = (*Client)(nil)

// NewClient constructs a lyrics client. A nil httpClient gets one with cfg.Timeout.
func NewClient(httpClient *http.Client, cfg Config, logger *zap.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.RetryBackoff,
		logger:      logger.Named("lyrics"),
	}
}

type lyricsResponse struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Lyrics string `json:"lyrics"`
	Error  string `json:"error"`
}

// FetchLyrics returns the lyrics for artist and title. Missing lyrics are
// reported as ports.ErrNoLyrics.
func (c *Client) FetchLyrics(ctx context.Context, artist, title string) (string, error) {
	artist, title = normalizeQuery(artist, title)
	if artist == "" || title == "" {
		return "", fmt.Errorf("lyrics adapter: empty query: %w", ports.ErrNoLyrics)
	}

	query := url.Values{}
	query.Set("artist", artist)
	query.Set("title", title)
	endpoint := fmt.Sprintf("%s/lyrics?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("lyrics adapter: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body lyricsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("lyrics adapter: decode: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("lyrics adapter: %s - %s: %w", artist, title, ports.ErrNoLyrics)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("lyrics adapter: status %d: %s", resp.StatusCode, body.Error)
	case body.Error != "":
		return "", fmt.Errorf("lyrics adapter: %s: %w", body.Error, ports.ErrNoLyrics)
	}

	text := cleanLyrics(body.Lyrics)
	if text == "" {
		return "", fmt.Errorf("lyrics adapter: %s - %s: %w", artist, title, ports.ErrNoLyrics)
	}

	c.logger.Debug("lyrics fetched", zap.String("artist", artist), zap.String("title", title))
	return text, nil
}
