// internal/game/scheduler.go
package game

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/EliasL15/music-game-backend/internal/lobby"
	"github.com/EliasL15/music-game-backend/internal/models"
	"github.com/EliasL15/music-game-backend/internal/songsource"
)

// Timing and retry defaults for a round.
const (
	DefaultRoundDuration   = 30 * time.Second
	DefaultTransitionPause = 5 * time.Second
	DefaultRetryPause      = time.Second
	DefaultMaxFetchRetries = 3
)

// skipNotice is broadcast in place of a clue when the song source fails
// every fetch attempt for a round.
const skipNotice = "Failed to fetch song data. Skipping round."

// Scheduler drives the round state machine for one lobby:
//
//	awaiting_clue -> collecting_guesses -> scoring -> transition -> next round
//
// One Scheduler runs per started lobby, on its own goroutine, so a slow or
// failing song source in one lobby never delays another. Events leave
// through the Broadcast function fields rather than any direct transport
// reference, which is also what the tests hook into.
type Scheduler struct {
	Lobby  *lobby.Lobby
	Source songsource.Source
	Log    *logrus.Logger

	// BroadcastFn delivers an event to every connection in the lobby's room.
	BroadcastFn func(msg map[string]interface{})
	// BroadcastToPlayerFn delivers an event to a single user, silently
	// dropping it if the user has no live connection.
	BroadcastToPlayerFn func(userID string, msg map[string]interface{})

	RoundDuration   time.Duration
	TransitionPause time.Duration
	RetryPause      time.Duration
	MaxFetchRetries int
}

// NewScheduler builds a scheduler with production timing for l.
func NewScheduler(l *lobby.Lobby, src songsource.Source, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		Lobby:           l,
		Source:          src,
		Log:             log,
		RoundDuration:   DefaultRoundDuration,
		TransitionPause: DefaultTransitionPause,
		RetryPause:      DefaultRetryPause,
		MaxFetchRetries: DefaultMaxFetchRetries,
	}
}

// Run plays every round and finalizes the winner. It returns when the game
// is over or ctx is cancelled; the lobby's own context is joined in, so
// destroying the lobby unblocks any pending wait instead of leaving ghost
// events firing into a dead room.
func (s *Scheduler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.Lobby.Context().Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	s.Lobby.BeginRounds()

	for {
		round := s.Lobby.CurrentRound()
		if round > s.Lobby.MaxRounds {
			break
		}
		if !s.playRound(ctx, round) {
			s.Log.WithField("lobby", s.Lobby.Code).Info("round scheduler cancelled")
			return
		}
		s.Lobby.AdvanceRound()
	}

	winner, players := s.Lobby.Finalize()
	s.broadcast(Event(EventGameEnded, map[string]interface{}{
		"winner":  winner,
		"players": players,
	}))
	s.Log.WithFields(logrus.Fields{
		"lobby":  s.Lobby.Code,
		"winner": winner,
	}).Info("game ended")
}

// playRound runs one full round. The false return means ctx was cancelled
// mid-round and the scheduler should stop without scoring or advancing.
func (s *Scheduler) playRound(ctx context.Context, round int) bool {
	clue := s.fetchClue(ctx, round)
	if ctx.Err() != nil {
		return false
	}

	// Every attempt failed: announce the skip, pause, and let the caller
	// advance the round with nobody scored.
	if clue == nil {
		s.broadcast(Event(EventRoundStarted, map[string]interface{}{
			"round":    round,
			"duration": int(s.RoundDuration / time.Second),
			"error":    skipNotice,
		}))
		return s.wait(ctx, s.TransitionPause)
	}

	s.Lobby.StartRound(clue)
	s.Log.WithFields(logrus.Fields{
		"lobby": s.Lobby.Code,
		"round": round,
		"song":  clue.Song,
	}).Debug("round started")

	s.broadcast(Event(EventRoundStarted, map[string]interface{}{
		"round":    round,
		"duration": int(s.RoundDuration / time.Second),
		"song":     clue,
	}))

	// The guessing window always runs its full length, even once everyone
	// has submitted.
	if !s.wait(ctx, s.RoundDuration) {
		return false
	}

	results := s.Lobby.ScoreRound(clue.Song)
	for _, pr := range results {
		s.sendToPlayer(pr.PlayerID, Event(EventRoundEndedPersonal, map[string]interface{}{
			"round":          round,
			"correct_answer": clue.Song,
			"guess_result":   pr.Result,
		}))
	}

	var nextRound interface{}
	if round < s.Lobby.MaxRounds {
		nextRound = round + 1
	}
	s.broadcast(Event(EventRoundTransition, map[string]interface{}{
		"next_round": nextRound,
		"duration":   int(s.TransitionPause / time.Second),
	}))
	return s.wait(ctx, s.TransitionPause)
}

// fetchClue asks the song source for a clue, pausing between attempts.
// Returns nil once every attempt has failed.
func (s *Scheduler) fetchClue(ctx context.Context, round int) *models.Clue {
	for attempt := 1; attempt <= s.MaxFetchRetries; attempt++ {
		clue, err := s.Source.FetchRandomClue(ctx)
		if err == nil {
			return clue
		}
		s.Log.WithFields(logrus.Fields{
			"lobby":   s.Lobby.Code,
			"round":   round,
			"attempt": attempt,
		}).Warnf("error fetching song: %v", err)
		if attempt < s.MaxFetchRetries && !s.wait(ctx, s.RetryPause) {
			return nil
		}
	}
	return nil
}

// wait sleeps for d unless ctx is cancelled first.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Scheduler) broadcast(msg map[string]interface{}) {
	if s.BroadcastFn != nil {
		s.BroadcastFn(msg)
	}
}

func (s *Scheduler) sendToPlayer(userID string, msg map[string]interface{}) {
	if s.BroadcastToPlayerFn != nil {
		s.BroadcastToPlayerFn(userID, msg)
	}
}
