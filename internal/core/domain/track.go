package domain

import "fmt"

// Track represents the currently loaded track as reported by the player.
type Track struct {
	ID         string
	Title      string
	Artists    []string
	Album      string // optional
	CoverURL   string // optional
	DurationMs int
}

// PrimaryArtist returns the first credited artist, or "" when none is known.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	if ms <= 0 {
		return "0:00"
	}
	minutes := ms / 60000
	seconds := (ms % 60000) / 1000
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
