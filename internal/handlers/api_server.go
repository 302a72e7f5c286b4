// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/EliasL15/music-game-backend/internal/lobby"
	"github.com/EliasL15/music-game-backend/internal/middleware"
	"github.com/EliasL15/music-game-backend/internal/songsource"
	"github.com/EliasL15/music-game-backend/internal/ws"
)

// Server owns the live game state and exposes it over HTTP and websocket:
// the lobby store, the connection registry, the song source the round
// schedulers draw from, and the per-session single-shot scores.
type Server struct {
	Log     *logrus.Logger
	Lobbies *lobby.LobbyStore
	Conns   *ws.Registry
	Source  songsource.Source

	scores *scoreBoard
}

// NewServer wires an empty server around the given song source.
func NewServer(logger *logrus.Logger, source songsource.Source) *Server {
	return &Server{
		Log:     logger,
		Lobbies: lobby.NewLobbyStore(),
		Conns:   ws.NewRegistry(),
		Source:  source,
		scores:  newScoreBoard(),
	}
}

// Routes builds the full router.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.Use(s.corsMiddleware)
	r.Use(middleware.LogMiddleware(s.Log))

	r.HandleFunc("/api/lobby/create", s.CreateLobby).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/lobby/join", s.JoinLobby).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/lobby/leave", s.LeaveLobby).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/lobby/start", s.StartGame).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/lobby/{code:[0-9]{6}}", s.GetLobby).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/lobby/{code:[0-9]{6}}/qr", s.LobbyQR).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/api/submit-guess", s.SubmitGuess).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/validate-guess", s.ValidateGuess).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/reset-score", s.ResetScore).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/random-song", s.RandomSong).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/init-session", s.InitSession).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/ws", s.HandleWS)

	return r
}

// corsMiddleware mirrors the API's browser-facing deployment: credentials
// ride on every call, so the request origin is echoed back rather than a
// wildcard.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		}

		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Warnf("failed to encode response: %v", err)
	}
}

// writeError emits the API's error shape: {"error": msg}.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
