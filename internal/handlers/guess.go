// internal/handlers/guess.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/EliasL15/music-game-backend/internal/auth"
	"github.com/EliasL15/music-game-backend/internal/game"
	"github.com/EliasL15/music-game-backend/internal/lobby"
)

// scoreBoard tracks per-session scores for the single-shot validation path,
// independent of any lobby game.
type scoreBoard struct {
	mu     sync.Mutex
	scores map[string]int
}

func newScoreBoard() *scoreBoard {
	return &scoreBoard{scores: make(map[string]int)}
}

func (b *scoreBoard) add(userID string, delta int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scores[userID] += delta
	return b.scores[userID]
}

func (b *scoreBoard) get(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scores[userID]
}

func (b *scoreBoard) reset(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.scores, userID)
}

type submitGuessRequest struct {
	Guess     string `json:"guess"`
	LobbyCode string `json:"lobby_code"`
}

// SubmitGuess records the caller's one allowed guess for the lobby's
// current round and announces that the player has guessed (without
// revealing what).
func (s *Server) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	var req submitGuessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Guess == "" || req.LobbyCode == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	l, ok := s.Lobbies.Get(req.LobbyCode)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	userID := auth.UserIDFromRequest(r)
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if err := l.SubmitGuess(userID, req.Guess); errors.Is(err, lobby.ErrAlreadyGuessed) {
		s.writeError(w, http.StatusBadRequest, "You have already made a guess this round")
		return
	}

	s.Conns.Broadcast(l.Code, game.Event(game.EventPlayerGuessed, map[string]interface{}{
		"player_id": userID,
	}))

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Guess submitted! Wait for round end to see results.",
	})
}

type validateGuessRequest struct {
	Guess string `json:"guess"`
	Song  string `json:"song"`
}

// ValidateGuess is the standalone single-clue validation path: fuzzy
// matching with parenthetical stripping, distinct from in-game scoring.
func (s *Server) ValidateGuess(w http.ResponseWriter, r *http.Request) {
	var req validateGuessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Guess == "" || req.Song == "" {
		s.writeError(w, http.StatusBadRequest, "Missing guess or song data")
		return
	}

	userID, err := auth.EnsureSession(w, r)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to establish session")
		return
	}

	correct := game.IsCloseMatch(req.Guess, req.Song)
	score := s.scores.get(userID)
	message := "Try again! 🤔"
	if correct {
		score = s.scores.add(userID, 1)
		message = "Correct! 🎉"
	}

	s.Log.WithFields(map[string]interface{}{
		"user":    userID,
		"guess":   req.Guess,
		"song":    req.Song,
		"correct": correct,
	}).Debug("validated single-shot guess")

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"correct": correct,
		"message": message,
		"score":   score,
	})
}

// ResetScore zeroes the caller's single-shot score.
func (s *Server) ResetScore(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.EnsureSession(w, r)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to establish session")
		return
	}
	s.scores.reset(userID)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "score": 0})
}

// RandomSong fetches a single chart track with no retry; the in-game
// scheduler has its own retry policy.
func (s *Server) RandomSong(w http.ResponseWriter, r *http.Request) {
	clue, err := s.Source.FetchRandomClue(r.Context())
	if err != nil {
		s.Log.Warnf("error fetching song: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch song from Deezer API")
		return
	}
	s.writeJSON(w, http.StatusOK, clue)
}
