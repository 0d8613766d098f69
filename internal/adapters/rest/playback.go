package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/services"
)

type playbackResponse struct {
	TrackID    string   `json:"track_id,omitempty"`
	Title      string   `json:"title,omitempty"`
	Artists    []string `json:"artists,omitempty"`
	Album      string   `json:"album,omitempty"`
	CoverURL   string   `json:"cover_url,omitempty"`
	PositionMs int      `json:"position_ms"`
	DurationMs int      `json:"duration_ms"`
	Position   string   `json:"position"`
	Duration   string   `json:"duration"`
	Playing    bool     `json:"playing"`
	Shuffle    bool     `json:"shuffle"`
	Volume     int      `json:"volume"`
	Muted      bool     `json:"muted"`
	DeviceID   string   `json:"device_id,omitempty"`
}

func newPlaybackResponse(s domain.PlaybackState) playbackResponse {
	resp := playbackResponse{
		PositionMs: s.PositionMs,
		DurationMs: s.DurationMs,
		Position:   domain.FormatDuration(s.PositionMs),
		Duration:   domain.FormatDuration(s.DurationMs),
		Playing:    s.Playing,
		Shuffle:    s.Shuffle,
		Volume:     s.Volume,
		Muted:      s.Muted,
		DeviceID:   s.DeviceID,
	}
	if s.Track != nil {
		resp.TrackID = s.Track.ID
		resp.Title = s.Track.Title
		resp.Artists = s.Track.Artists
		resp.Album = s.Track.Album
		resp.CoverURL = s.Track.CoverURL
	}
	return resp
}

// GetPlayback handles GET /playback
func (h *Handler) GetPlayback(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	if !snap.Authenticated {
		writeErrorWithCode(w, http.StatusUnauthorized, "not authenticated", errCodeNotAuthenticated)
		return
	}
	writeJSON(w, http.StatusOK, newPlaybackResponse(snap.Playback))
}

type commandRequest struct {
	PositionMs *int `json:"position_ms,omitempty"`
	Volume     *int `json:"volume,omitempty"`
}

type commandResponse struct {
	Result services.CommandResult `json:"result"`
}

type commandFunc func(ctx context.Context, s SessionService, req commandRequest) (services.CommandResult, error)

var errMissingField = errors.New("missing field")

var commands = map[string]commandFunc{
	"toggle": func(ctx context.Context, s SessionService, _ commandRequest) (services.CommandResult, error) {
		return s.TogglePlay(ctx)
	},
	"next": func(ctx context.Context, s SessionService, _ commandRequest) (services.CommandResult, error) {
		return s.Next(ctx)
	},
	"previous": func(ctx context.Context, s SessionService, _ commandRequest) (services.CommandResult, error) {
		return s.Previous(ctx)
	},
	"seek": func(ctx context.Context, s SessionService, req commandRequest) (services.CommandResult, error) {
		if req.PositionMs == nil {
			return services.CommandFailed, errMissingField
		}
		return s.Seek(ctx, *req.PositionMs)
	},
	"volume": func(ctx context.Context, s SessionService, req commandRequest) (services.CommandResult, error) {
		if req.Volume == nil {
			return services.CommandFailed, errMissingField
		}
		return s.SetVolume(ctx, *req.Volume)
	},
	"mute": func(ctx context.Context, s SessionService, _ commandRequest) (services.CommandResult, error) {
		return s.ToggleMute(ctx)
	},
	"shuffle": func(ctx context.Context, s SessionService, _ commandRequest) (services.CommandResult, error) {
		return s.ToggleShuffle(ctx)
	},
}

// PlaybackCommand handles POST /playback/{command}
func (h *Handler) PlaybackCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("command")
	run, ok := commands[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown command: "+name)
		return
	}

	var req commandRequest
	if r.ContentLength != 0 {
		if !isJSONContentType(r) {
			writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := run(r.Context(), h.session, req)
	switch {
	case errors.Is(err, errMissingField):
		writeError(w, http.StatusBadRequest, name+" requires a value")
	case err != nil:
		h.writeCommandError(w, err)
	case result == services.CommandIgnored:
		writeErrorWithCode(w, http.StatusConflict, "another command is in flight", errCodeBusy)
	default:
		writeJSON(w, http.StatusOK, commandResponse{Result: result})
	}
}

func (h *Handler) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		writeErrorWithCode(w, http.StatusUnauthorized, err.Error(), errCodeNotAuthenticated)
	case errors.Is(err, domain.ErrPlayerUnavailable):
		writeErrorWithCode(w, http.StatusServiceUnavailable, err.Error(), errCodePlayerUnavailable)
	case errors.Is(err, domain.ErrNoActivePlayback):
		writeErrorWithCode(w, http.StatusConflict, err.Error(), errCodeNoActivePlayback)
	default:
		writeErrorWithCode(w, http.StatusBadGateway, err.Error(), errCodeCommandFailed)
	}
}
