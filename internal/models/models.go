package models

// LobbyStatus tracks where a lobby is in its lifecycle.
type LobbyStatus string

const (
	StatusWaiting  LobbyStatus = "waiting"
	StatusPlaying  LobbyStatus = "playing"
	StatusFinished LobbyStatus = "finished"
)

// Player is a member of a lobby. The ID is the session identity assigned by
// the auth package and is stable for the lifetime of a browser session.
type Player struct {
	ID     string `json:"id"`
	IsHost bool   `json:"is_host"`
	Score  int    `json:"score"`
}

// Clue is the guessable item for one round. Immutable once fetched; the
// scheduler replaces it wholesale each round.
type Clue struct {
	Song     string `json:"song"`
	Artist   string `json:"artist"`
	AudioURL string `json:"audio_url"`
}

// GuessRecord holds a player's one allowed guess for the current round.
type GuessRecord struct {
	Guess     string `json:"guess"`
	Submitted bool   `json:"submitted"`
}

// GuessResult is the per-player outcome delivered privately at round end.
// Guess is nil for players who never submitted.
type GuessResult struct {
	Guess   *string `json:"guess"`
	Correct bool    `json:"correct"`
}
