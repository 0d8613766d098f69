package domain

import "time"

// PlaybackState mirrors the player's view of what is playing.
// AnchorPositionMs/AnchorAt record the last authoritative position so that
// ticks can extrapolate from it.
type PlaybackState struct {
	Track      *Track
	PositionMs int
	DurationMs int
	Playing    bool
	Shuffle    bool
	Volume     int // 0-100
	Muted      bool
	DeviceID   string

	AnchorPositionMs int
	AnchorAt         time.Time
}

// TrackID returns the current track id or "".
func (s PlaybackState) TrackID() string {
	if s.Track == nil {
		return ""
	}
	return s.Track.ID
}

// UpdateSource tags who produced a PositionUpdate.
type UpdateSource int

const (
	// SourceEvent is a state-changed event from the player. Always authoritative.
	SourceEvent UpdateSource = iota
	// SourceSync is an explicit state query issued by the estimator.
	SourceSync
	// SourceTick is a local extrapolation between real updates.
	SourceTick
	// SourceSeek is an optimistic position set by a seek command.
	SourceSeek
)

func (s UpdateSource) String() string {
	switch s {
	case SourceEvent:
		return "event"
	case SourceSync:
		return "sync"
	case SourceTick:
		return "tick"
	case SourceSeek:
		return "seek"
	default:
		return "unknown"
	}
}

// PositionUpdate is the single input of the playback reducer.
// State is ignored for SourceTick; PositionMs is only read for SourceSeek.
type PositionUpdate struct {
	Source     UpdateSource
	State      PlaybackState
	PositionMs int
	At         time.Time
}

// Apply folds an update into the state. Events replace the snapshot and
// re-anchor. Syncs do the same unless they were issued before the current
// anchor. Ticks only extrapolate from the anchor while playing.
// Volume and mute are local settings and survive snapshot replacement.
func (s PlaybackState) Apply(u PositionUpdate) PlaybackState {
	switch u.Source {
	case SourceEvent:
		return s.replace(u.State, u.At)
	case SourceSync:
		if !s.AnchorAt.IsZero() && u.At.Before(s.AnchorAt) {
			return s
		}
		return s.replace(u.State, u.At)
	case SourceSeek:
		next := s
		next.PositionMs = clampPosition(u.PositionMs, s.DurationMs)
		next.AnchorPositionMs = next.PositionMs
		next.AnchorAt = u.At
		return next
	case SourceTick:
		if !s.Playing || s.AnchorAt.IsZero() || u.At.Before(s.AnchorAt) {
			return s
		}
		next := s
		elapsed := int(u.At.Sub(s.AnchorAt) / time.Millisecond)
		next.PositionMs = clampPosition(s.AnchorPositionMs+elapsed, s.DurationMs)
		if next.PositionMs < s.PositionMs {
			next.PositionMs = s.PositionMs
		}
		return next
	default:
		return s
	}
}

func (s PlaybackState) replace(incoming PlaybackState, at time.Time) PlaybackState {
	next := incoming
	// a muted device reports 0; keep the level to restore on unmute
	next.Muted = s.Muted
	if s.Muted {
		next.Volume = s.Volume
	}
	if next.DeviceID == "" {
		next.DeviceID = s.DeviceID
	}
	next.PositionMs = clampPosition(incoming.PositionMs, incoming.DurationMs)
	next.AnchorPositionMs = next.PositionMs
	next.AnchorAt = at
	return next
}

func clampPosition(position int, duration int) int {
	if position < 0 {
		return 0
	}
	if duration > 0 && position > duration {
		return duration
	}
	return position
}
