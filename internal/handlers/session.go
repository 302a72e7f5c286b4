// internal/handlers/session.go
package handlers

import (
	"net/http"

	"github.com/EliasL15/music-game-backend/internal/auth"
)

// InitSession makes sure the caller has a session identity and reports it,
// so the frontend can learn its own player id before joining a lobby.
func (s *Server) InitSession(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.EnsureSession(w, r)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to establish session")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Session initialized",
		"user_id": userID,
	})
}
