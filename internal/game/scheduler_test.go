// internal/game/scheduler_test.go
package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EliasL15/music-game-backend/internal/lobby"
	"github.com/EliasL15/music-game-backend/internal/models"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	roomEvents   []map[string]interface{}
	playerEvents map[string][]map[string]interface{}
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{playerEvents: make(map[string][]map[string]interface{})}
}

func (mb *mockBroadcaster) broadcastFn(msg map[string]interface{}) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.roomEvents = append(mb.roomEvents, msg)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(userID string, msg map[string]interface{}) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[userID] = append(mb.playerEvents[userID], msg)
}

func (mb *mockBroadcaster) eventsOfType(t EventType) []map[string]interface{} {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []map[string]interface{}
	for _, ev := range mb.roomEvents {
		if ev["type"] == string(t) {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) lastEventOfType(t EventType) map[string]interface{} {
	evs := mb.eventsOfType(t)
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1]
}

func (mb *mockBroadcaster) lastPlayerEvent(userID string) map[string]interface{} {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	evs := mb.playerEvents[userID]
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1]
}

// fixedSource always serves the same clue.
type fixedSource struct {
	clue models.Clue
}

func (f *fixedSource) FetchRandomClue(ctx context.Context) (*models.Clue, error) {
	c := f.clue
	return &c, nil
}

// failingSource fails every fetch and counts attempts.
type failingSource struct {
	mu    sync.Mutex
	calls int
}

func (f *failingSource) FetchRandomClue(ctx context.Context) (*models.Clue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil, errors.New("deezer unreachable")
}

func (f *failingSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// newTestScheduler shrinks every wait so a full game runs in milliseconds.
func newTestScheduler(l *lobby.Lobby, src interface {
	FetchRandomClue(ctx context.Context) (*models.Clue, error)
}) (*Scheduler, *mockBroadcaster) {
	mb := newMockBroadcaster()
	s := NewScheduler(l, src, testLogger())
	s.RoundDuration = 40 * time.Millisecond
	s.TransitionPause = 10 * time.Millisecond
	s.RetryPause = 5 * time.Millisecond
	s.BroadcastFn = mb.broadcastFn
	s.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	return s, mb
}

func runScheduler(s *Scheduler) chan struct{} {
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	return done
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not finish in time")
	}
}

func TestSchedulerScoresCorrectGuess(t *testing.T) {
	store := lobby.NewLobbyStore()
	l := store.Create("alice")
	l.Join("bob")
	l.MaxRounds = 1

	sched, mb := newTestScheduler(l, &fixedSource{clue: models.Clue{
		Song: "Give Me Everything", Artist: "Pitbull", AudioURL: "https://cdn/preview.mp3",
	}})
	done := runScheduler(sched)

	// Submit inside the guessing window; matching is case-insensitive.
	require.Eventually(t, func() bool {
		return mb.lastEventOfType(EventRoundStarted) != nil
	}, time.Second, time.Millisecond)
	require.NoError(t, l.SubmitGuess("alice", "give me EVERYTHING"))
	require.NoError(t, l.SubmitGuess("bob", "give me everything (feat. nayer)"))

	waitDone(t, done)

	started := mb.lastEventOfType(EventRoundStarted)
	assert.Equal(t, 1, started["round"])
	assert.NotContains(t, started, "error")
	require.NotNil(t, started["song"])

	players := l.Players()
	assert.Equal(t, 1, players[0].Score, "exact case-insensitive match scores 1")
	assert.Equal(t, 0, players[1].Score, "in-game scoring is not fuzzy")

	aliceResult := mb.lastPlayerEvent("alice")
	require.NotNil(t, aliceResult)
	assert.Equal(t, string(EventRoundEndedPersonal), aliceResult["type"])
	assert.Equal(t, "Give Me Everything", aliceResult["correct_answer"])
	assert.True(t, aliceResult["guess_result"].(models.GuessResult).Correct)

	bobResult := mb.lastPlayerEvent("bob")
	require.NotNil(t, bobResult)
	assert.False(t, bobResult["guess_result"].(models.GuessResult).Correct)

	transition := mb.lastEventOfType(EventRoundTransition)
	require.NotNil(t, transition)
	assert.Nil(t, transition["next_round"], "final round announces no next round")

	ended := mb.lastEventOfType(EventGameEnded)
	require.NotNil(t, ended)
	assert.Equal(t, "alice", ended["winner"])
}

func TestSchedulerRunsAllRounds(t *testing.T) {
	store := lobby.NewLobbyStore()
	l := store.Create("alice")

	sched, mb := newTestScheduler(l, &fixedSource{clue: models.Clue{
		Song: "Levels", Artist: "Avicii", AudioURL: "https://cdn/levels.mp3",
	}})
	sched.RoundDuration = 5 * time.Millisecond
	sched.TransitionPause = time.Millisecond
	done := runScheduler(sched)
	waitDone(t, done)

	started := mb.eventsOfType(EventRoundStarted)
	require.Len(t, started, lobby.DefaultMaxRounds)
	for i, ev := range started {
		assert.Equal(t, i+1, ev["round"], "rounds advance one per iteration")
	}
	assert.NotNil(t, mb.lastEventOfType(EventGameEnded))
}

func TestSchedulerSkipsRoundWhenFetchExhausted(t *testing.T) {
	store := lobby.NewLobbyStore()
	l := store.Create("alice")
	l.Join("bob")
	l.MaxRounds = 2

	src := &failingSource{}
	sched, mb := newTestScheduler(l, src)
	done := runScheduler(sched)
	waitDone(t, done)

	assert.Equal(t, 2*DefaultMaxFetchRetries, src.callCount(), "3 attempts per round")

	started := mb.eventsOfType(EventRoundStarted)
	require.Len(t, started, 2, "skipped rounds still advance the counter")
	for _, ev := range started {
		assert.Contains(t, ev, "error", "skip is announced with an error indicator")
		assert.NotContains(t, ev, "song")
	}

	// Nobody is scored on a skipped round and no personal results go out.
	for _, p := range l.Players() {
		assert.Equal(t, 0, p.Score)
		assert.Nil(t, mb.lastPlayerEvent(p.ID))
	}
	assert.Empty(t, mb.eventsOfType(EventRoundTransition))

	ended := mb.lastEventOfType(EventGameEnded)
	require.NotNil(t, ended)
	assert.Equal(t, "alice", ended["winner"], "all-zero scores resolve to the earliest-listed player")
}

func TestSchedulerStopsWhenLobbyDestroyed(t *testing.T) {
	store := lobby.NewLobbyStore()
	l := store.Create("alice")

	sched, mb := newTestScheduler(l, &fixedSource{clue: models.Clue{
		Song: "Titanium", Artist: "David Guetta", AudioURL: "https://cdn/titanium.mp3",
	}})
	sched.RoundDuration = time.Minute // never finishes naturally
	done := runScheduler(sched)

	require.Eventually(t, func() bool {
		return mb.lastEventOfType(EventRoundStarted) != nil
	}, time.Second, time.Millisecond)

	// Last player leaving destroys the lobby and must unblock the round wait.
	l.Leave("alice")
	waitDone(t, done)

	assert.Nil(t, mb.lastEventOfType(EventGameEnded), "cancelled games emit no ghost finale")
}

func TestSchedulerGuessFromPreviousRoundNeverCarries(t *testing.T) {
	store := lobby.NewLobbyStore()
	l := store.Create("alice")
	l.MaxRounds = 2

	sched, mb := newTestScheduler(l, &fixedSource{clue: models.Clue{
		Song: "Hey Ya", Artist: "OutKast", AudioURL: "https://cdn/heyya.mp3",
	}})
	done := runScheduler(sched)

	require.Eventually(t, func() bool {
		evs := mb.eventsOfType(EventRoundStarted)
		return len(evs) == 1
	}, time.Second, time.Millisecond)
	require.NoError(t, l.SubmitGuess("alice", "hey ya"))

	waitDone(t, done)

	// Correct in round 1, absent in round 2: exactly one point.
	assert.Equal(t, 1, l.Players()[0].Score)

	results := mb.playerEvents["alice"]
	require.Len(t, results, 2)
	assert.True(t, results[0]["guess_result"].(models.GuessResult).Correct)
	assert.False(t, results[1]["guess_result"].(models.GuessResult).Correct)
	assert.Nil(t, results[1]["guess_result"].(models.GuessResult).Guess)
}
