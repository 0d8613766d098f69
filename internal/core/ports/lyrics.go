package ports

import (
	"context"
	"errors"
)

// ErrNoLyrics indicates the lyrics source has nothing for the track.
var ErrNoLyrics = errors.New("no lyrics")

type LyricsProvider interface {
	FetchLyrics(ctx context.Context, artist, title string) (string, error)
}

// LyricsJob asks a background worker to resolve the lyrics of one track.
type LyricsJob struct {
	ID      string
	TrackID string
	Artist  string
	Title   string
}

// LyricsJobQueue accepts lyrics jobs without blocking.
type LyricsJobQueue interface {
	// Submit returns false when the job was dropped.
	Submit(job LyricsJob) bool
}
