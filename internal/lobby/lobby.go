// internal/lobby/lobby.go
package lobby

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/EliasL15/music-game-backend/internal/models"
)

// MaxPlayers is the hard cap on lobby membership.
const MaxPlayers = 8

// DefaultMaxRounds is the fixed number of rounds per game.
const DefaultMaxRounds = 10

var (
	ErrLobbyFull      = errors.New("lobby is full")
	ErrNotHost        = errors.New("only the host can start the game")
	ErrAlreadyGuessed = errors.New("already made a guess this round")
)

// Lobby is an ephemeral group of players sharing one game instance.
// All state transitions go through methods that hold mu, so join/leave/guess
// from request handlers never interleave with the round scheduler's
// reset/score passes on the same lobby.
type Lobby struct {
	Code      string
	MaxRounds int

	// OnEmpty is called after the last player leaves, typically wired by the
	// store to delete the lobby.
	OnEmpty func(code string)

	mu          sync.Mutex
	players     []*models.Player // join order; determines host promotion and tie-breaks
	status      models.LobbyStatus
	round       int
	currentClue *models.Clue
	guesses     map[string]*models.GuessRecord

	ctx    context.Context
	cancel context.CancelFunc
}

// PlayerResult pairs a player with their scored guess, in join order.
type PlayerResult struct {
	PlayerID string
	Result   models.GuessResult
}

// Snapshot is the full lobby state returned by the snapshot endpoint.
type Snapshot struct {
	Code        string                        `json:"code"`
	Players     []*models.Player              `json:"players"`
	Status      models.LobbyStatus            `json:"status"`
	Round       int                           `json:"round"`
	MaxRounds   int                           `json:"max_rounds"`
	CurrentSong *models.Clue                  `json:"current_song"`
	Guesses     map[string]models.GuessRecord `json:"guesses"`
}

// NewLobby seeds a lobby with one host player at score 0.
func NewLobby(code, hostID string) *Lobby {
	ctx, cancel := context.WithCancel(context.Background())
	return &Lobby{
		Code:      code,
		MaxRounds: DefaultMaxRounds,
		players:   []*models.Player{{ID: hostID, IsHost: true}},
		status:    models.StatusWaiting,
		guesses:   make(map[string]*models.GuessRecord),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Context is cancelled when the lobby is destroyed, which unblocks any
// pending round waits in the scheduler.
func (l *Lobby) Context() context.Context {
	return l.ctx
}

// Join adds userID as a non-host player. Re-joining is idempotent: it
// reports the player's current host status with joined=false so callers
// don't announce the same player twice.
func (l *Lobby) Join(userID string) (isHost, joined bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range l.players {
		if p.ID == userID {
			return p.IsHost, false, nil
		}
	}
	if len(l.players) >= MaxPlayers {
		return false, false, ErrLobbyFull
	}
	l.players = append(l.players, &models.Player{ID: userID})
	return false, true, nil
}

// Leave removes the player if present. If the host left and players remain,
// the first remaining player in join order is promoted. An empty lobby
// cancels the scheduler context and fires OnEmpty.
func (l *Lobby) Leave(userID string) (removed, empty bool) {
	l.mu.Lock()

	kept := l.players[:0]
	for _, p := range l.players {
		if p.ID == userID {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	l.players = kept

	empty = len(l.players) == 0
	if !empty {
		hostPresent := false
		for _, p := range l.players {
			if p.IsHost {
				hostPresent = true
				break
			}
		}
		if !hostPresent {
			l.players[0].IsHost = true
		}
	}
	onEmpty := l.OnEmpty
	l.mu.Unlock()

	if empty {
		l.cancel()
		if onEmpty != nil {
			onEmpty(l.Code)
		}
	}
	return removed, empty
}

// Start transitions the lobby from waiting to playing. The transition
// happens exactly once: a second call reports started=false so the caller
// never spawns a duplicate scheduler.
func (l *Lobby) Start(userID string) (started bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	isHost := false
	for _, p := range l.players {
		if p.ID == userID && p.IsHost {
			isHost = true
			break
		}
	}
	if !isHost {
		return false, ErrNotHost
	}
	if l.status != models.StatusWaiting {
		return false, nil
	}
	l.status = models.StatusPlaying
	return true, nil
}

// SubmitGuess records userID's one allowed guess for the current round.
func (l *Lobby) SubmitGuess(userID, guess string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec, ok := l.guesses[userID]; ok && rec.Submitted {
		return ErrAlreadyGuessed
	}
	l.guesses[userID] = &models.GuessRecord{Guess: guess, Submitted: true}
	return nil
}

// BeginRounds resets the round counter to the first round.
func (l *Lobby) BeginRounds() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.round = 1
}

// CurrentRound returns the 1-based round number.
func (l *Lobby) CurrentRound() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.round
}

// AdvanceRound increments the round counter.
func (l *Lobby) AdvanceRound() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.round++
}

// StartRound installs the round's clue and rebuilds the guess set from the
// live player list. A player who joined mid-round only appears in future
// rounds' guess sets; one who left simply stops having an entry consulted.
func (l *Lobby) StartRound(clue *models.Clue) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentClue = clue
	l.guesses = make(map[string]*models.GuessRecord, len(l.players))
	for _, p := range l.players {
		l.guesses[p.ID] = &models.GuessRecord{}
	}
}

// ScoreRound scores every player currently in the lobby against the round's
// clue title: a guess is correct iff it equals the title under
// case-insensitive comparison, incrementing the player's score by exactly 1.
// The clue is discarded. Results come back in join order.
func (l *Lobby) ScoreRound(title string) []PlayerResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	results := make([]PlayerResult, 0, len(l.players))
	for _, p := range l.players {
		res := models.GuessResult{}
		if rec, ok := l.guesses[p.ID]; ok && rec.Submitted {
			guess := rec.Guess
			res.Guess = &guess
			if strings.EqualFold(guess, title) {
				res.Correct = true
				p.Score++
			}
		}
		results = append(results, PlayerResult{PlayerID: p.ID, Result: res})
	}
	l.currentClue = nil
	return results
}

// Finalize picks the winner: the first player in join order holding the
// strictly highest score. Returns the winner id and the final player list.
func (l *Lobby) Finalize() (winner string, players []*models.Player) {
	l.mu.Lock()
	defer l.mu.Unlock()

	highest := -1
	for _, p := range l.players {
		if p.Score > highest {
			highest = p.Score
			winner = p.ID
		}
	}
	return winner, l.playersCopyLocked()
}

// Players returns a copy of the current player list in join order.
func (l *Lobby) Players() []*models.Player {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.playersCopyLocked()
}

func (l *Lobby) playersCopyLocked() []*models.Player {
	out := make([]*models.Player, len(l.players))
	for i, p := range l.players {
		cp := *p
		out[i] = &cp
	}
	return out
}

// Status returns the lobby's current lifecycle status.
func (l *Lobby) Status() models.LobbyStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// TakeSnapshot copies the full lobby state for the snapshot endpoint.
func (l *Lobby) TakeSnapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	guesses := make(map[string]models.GuessRecord, len(l.guesses))
	for id, rec := range l.guesses {
		guesses[id] = *rec
	}
	return Snapshot{
		Code:        l.Code,
		Players:     l.playersCopyLocked(),
		Status:      l.status,
		Round:       l.round,
		MaxRounds:   l.MaxRounds,
		CurrentSong: l.currentClue,
		Guesses:     guesses,
	}
}
