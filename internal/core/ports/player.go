package ports

import (
	"context"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
)

// TokenFunc returns the access token that is current at call time.
type TokenFunc func() string

// EventListener receives player callbacks. Implementations must not block.
type EventListener func(domain.PlayerEvent)

// Player is one connected handle to the external playback device.
type Player interface {
	Connect(ctx context.Context) error
	Disconnect()
	CurrentState(ctx context.Context) (domain.PlaybackState, error)
	TogglePlay(ctx context.Context) error
	Resume(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	// SetVolume takes a level in [0, 1].
	SetVolume(ctx context.Context, level float64) error
	SetShuffle(ctx context.Context, on bool) error
}

// PlayerFactory loads the player integration and builds a handle.
type PlayerFactory interface {
	NewPlayer(token TokenFunc, listener EventListener) (Player, error)
}
