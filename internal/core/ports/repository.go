package ports

import (
	"context"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
)

// TokenStore persists the session bundle. Clear removes every key together.
type TokenStore interface {
	LoadTokens(ctx context.Context) (domain.TokenBundle, error)
	SaveTokens(ctx context.Context, b domain.TokenBundle) error
	ClearTokens(ctx context.Context) error
}

// LyricsCache keeps fetched lyrics per track id.
type LyricsCache interface {
	GetLyrics(ctx context.Context, trackID string) (string, error)
	PutLyrics(ctx context.Context, trackID string, lyrics string) error
}
