// Package rest exposes the session, playback controls and lyrics view over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/services"
)

// SessionService is the part of the SessionManager the API drives.
type SessionService interface {
	Snapshot() services.SessionSnapshot
	AcquireSession(ctx context.Context, redirect *domain.TokenBundle) (bool, error)
	BootstrapPlayer(ctx context.Context) error
	Logout(ctx context.Context) error

	TogglePlay(ctx context.Context) (services.CommandResult, error)
	Next(ctx context.Context) (services.CommandResult, error)
	Previous(ctx context.Context) (services.CommandResult, error)
	Seek(ctx context.Context, positionMs int) (services.CommandResult, error)
	SetVolume(ctx context.Context, level int) (services.CommandResult, error)
	ToggleMute(ctx context.Context) (services.CommandResult, error)
	ToggleShuffle(ctx context.Context) (services.CommandResult, error)
}

// LyricsViewer renders the synchronizer state.
type LyricsViewer interface {
	View() services.LyricsView
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	session SessionService
	lyrics  LyricsViewer
	logger  *zap.Logger
	router  *http.ServeMux // Standard library router
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(session SessionService, lyrics LyricsViewer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		session: session,
		lyrics:  lyrics,
		logger:  logger.Named("rest"),
		router:  http.NewServeMux(),
	}

	// Register Routes
	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	// Health Check
	h.router.HandleFunc("GET /health", h.HealthCheck)
	// Session
	h.router.HandleFunc("GET /session", h.GetSession)
	h.router.HandleFunc("POST /session", h.CreateSession)
	h.router.HandleFunc("DELETE /session", h.DeleteSession)
	// Playback
	h.router.HandleFunc("GET /playback", h.GetPlayback)
	h.router.HandleFunc("POST /playback/{command}", h.PlaybackCommand)
	// Lyrics
	h.router.HandleFunc("GET /lyrics", h.GetLyrics)
}

type healthResponse struct {
	Status  string              `json:"status"`
	Session domain.SessionState `json:"session"`
	Player  bool                `json:"player_healthy"`
}

// HealthCheck reports the process is up along with the session state.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Session: snap.State,
		Player:  snap.Healthy,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeErrorWithCode(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func isJSONContentType(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
