// internal/handlers/lobby.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"

	"github.com/EliasL15/music-game-backend/internal/auth"
	"github.com/EliasL15/music-game-backend/internal/game"
	"github.com/EliasL15/music-game-backend/internal/lobby"
)

type lobbyRequest struct {
	Code string `json:"code"`
}

type lobbyResponse struct {
	Code   string `json:"code"`
	IsHost bool   `json:"is_host"`
}

// CreateLobby mints a fresh lobby with the caller as its host.
func (s *Server) CreateLobby(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.EnsureSession(w, r)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to establish session")
		return
	}

	l := s.Lobbies.Create(userID)
	s.Log.WithFields(map[string]interface{}{"lobby": l.Code, "host": userID}).Info("lobby created")

	s.writeJSON(w, http.StatusOK, lobbyResponse{Code: l.Code, IsHost: true})
}

// JoinLobby adds the caller to an existing lobby and announces the arrival
// to the room.
func (s *Server) JoinLobby(w http.ResponseWriter, r *http.Request) {
	var req lobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		s.writeError(w, http.StatusNotFound, "Invalid lobby code")
		return
	}
	l, ok := s.Lobbies.Get(req.Code)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Invalid lobby code")
		return
	}

	userID, err := auth.EnsureSession(w, r)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to establish session")
		return
	}

	isHost, joined, err := l.Join(userID)
	if errors.Is(err, lobby.ErrLobbyFull) {
		s.writeError(w, http.StatusBadRequest, "Lobby is full")
		return
	}
	if joined {
		s.Conns.Broadcast(l.Code, game.Event(game.EventPlayerJoined, map[string]interface{}{
			"player_id": userID,
		}))
		s.Log.WithFields(map[string]interface{}{"lobby": l.Code, "user": userID}).Info("player joined lobby")
	}

	s.writeJSON(w, http.StatusOK, lobbyResponse{Code: l.Code, IsHost: isHost})
}

// LeaveLobby removes the caller from a lobby, promoting a new host or
// destroying the lobby as needed.
func (s *Server) LeaveLobby(w http.ResponseWriter, r *http.Request) {
	var req lobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		s.writeError(w, http.StatusNotFound, "Invalid lobby code")
		return
	}
	l, ok := s.Lobbies.Get(req.Code)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Invalid lobby code")
		return
	}

	userID := auth.UserIDFromRequest(r)
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "Not in a lobby")
		return
	}

	_, empty := l.Leave(userID)
	s.Conns.UnbindUser(userID)

	if !empty {
		s.Conns.Broadcast(l.Code, game.Event(game.EventPlayerLeft, map[string]interface{}{
			"player_id": userID,
		}))
	}
	s.Log.WithFields(map[string]interface{}{"lobby": l.Code, "user": userID, "empty": empty}).Info("player left lobby")

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StartGame transitions the lobby to playing and spawns its round
// scheduler. Only the host may start; a repeated start never spawns a
// second scheduler.
func (s *Server) StartGame(w http.ResponseWriter, r *http.Request) {
	var req lobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		s.writeError(w, http.StatusNotFound, "Invalid lobby code")
		return
	}
	l, ok := s.Lobbies.Get(req.Code)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Invalid lobby code")
		return
	}

	userID := auth.UserIDFromRequest(r)
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "User not identified")
		return
	}

	started, err := l.Start(userID)
	if errors.Is(err, lobby.ErrNotHost) {
		s.writeError(w, http.StatusForbidden, "Only host can start the game")
		return
	}
	if started {
		s.Log.WithFields(map[string]interface{}{"lobby": l.Code, "host": userID}).Info("game started")
		s.Conns.Broadcast(l.Code, game.Event(game.EventGameStarted, nil))
		s.spawnScheduler(l)
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// spawnScheduler runs the lobby's round loop on its own goroutine, with
// events fanned out through the connection registry.
func (s *Server) spawnScheduler(l *lobby.Lobby) {
	sched := game.NewScheduler(l, s.Source, s.Log)
	sched.BroadcastFn = func(msg map[string]interface{}) {
		s.Conns.Broadcast(l.Code, msg)
	}
	sched.BroadcastToPlayerFn = func(userID string, msg map[string]interface{}) {
		s.Conns.SendToUser(userID, msg)
	}
	go sched.Run(context.Background())
}

// GetLobby returns the full lobby snapshot.
func (s *Server) GetLobby(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	l, ok := s.Lobbies.Get(code)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Lobby not found")
		return
	}
	s.writeJSON(w, http.StatusOK, l.TakeSnapshot())
}

// LobbyQR renders a QR code for the lobby's join URL, for sharing a lobby
// across the room without dictating six digits.
func (s *Server) LobbyQR(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if _, ok := s.Lobbies.Get(code); !ok {
		s.writeError(w, http.StatusNotFound, "Lobby not found")
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	joinURL := fmt.Sprintf("%s://%s/join/%s", scheme, r.Host, code)

	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to render QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
