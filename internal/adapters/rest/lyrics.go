package rest

import "net/http"

// GetLyrics handles GET /lyrics
func (h *Handler) GetLyrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.lyrics.View())
}
