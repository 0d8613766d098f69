package domain

import "errors"

var (
	ErrNotFound          = errors.New("domain: not found")
	ErrNotAuthenticated  = errors.New("domain: not authenticated")
	ErrPlayerUnavailable = errors.New("domain: player unavailable")
	ErrNoActivePlayback  = errors.New("domain: no active playback")
	ErrInvalidToken      = errors.New("domain: invalid token bundle")
)
