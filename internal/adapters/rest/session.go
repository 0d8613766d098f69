package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/services"
)

const (
	errCodeNotAuthenticated  = "NOT_AUTHENTICATED"
	errCodePlayerUnavailable = "PLAYER_UNAVAILABLE"
	errCodeNoActivePlayback  = "NO_ACTIVE_PLAYBACK"
	errCodeInvalidToken      = "INVALID_TOKEN"
	errCodeBusy              = "BUSY"
	errCodeCommandFailed     = "COMMAND_FAILED"
)

// createSessionRequest carries either explicit tokens or a raw redirect
// fragment. An empty body falls back to the persisted tokens.
type createSessionRequest struct {
	Fragment string `json:"fragment,omitempty"`
	domain.TokenResponse
}

type sessionResponse struct {
	services.SessionSnapshot
	Playback *playbackResponse `json:"playback,omitempty"`
}

func newSessionResponse(snap services.SessionSnapshot) sessionResponse {
	resp := sessionResponse{SessionSnapshot: snap}
	if snap.Authenticated {
		pb := newPlaybackResponse(snap.Playback)
		resp.Playback = &pb
	}
	return resp
}

// GetSession handles GET /session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSessionResponse(h.session.Snapshot()))
}

// CreateSession handles POST /session
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var redirect *domain.TokenBundle
	if r.ContentLength != 0 {
		if !isJSONContentType(r) {
			writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		bundle, err := req.bundle(time.Now())
		if err != nil {
			writeErrorWithCode(w, http.StatusBadRequest, err.Error(), errCodeInvalidToken)
			return
		}
		redirect = bundle
	}

	ok, err := h.session.AcquireSession(r.Context(), redirect)
	if err != nil {
		h.logger.Warn("acquire session failed", zap.Error(err))
	}
	if !ok {
		writeErrorWithCode(w, http.StatusUnauthorized, "no session could be acquired", errCodeNotAuthenticated)
		return
	}

	if err := h.session.BootstrapPlayer(r.Context()); err != nil {
		// the session stays authenticated; health shows up in the snapshot
		h.logger.Warn("player bootstrap failed", zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, newSessionResponse(h.session.Snapshot()))
}

// DeleteSession handles DELETE /session
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		h.logger.Warn("logout incomplete", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req createSessionRequest) bundle(now time.Time) (*domain.TokenBundle, error) {
	if req.Fragment != "" {
		b, err := domain.ParseTokenFragment(req.Fragment, now)
		if err != nil {
			return nil, err
		}
		return &b, nil
	}
	if req.AccessToken == "" && req.RefreshToken == "" {
		return nil, nil
	}
	b := req.TokenResponse.Bundle(now)
	if !b.Valid() {
		return nil, errors.New("access_token is required")
	}
	return &b, nil
}
