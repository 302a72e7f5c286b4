// internal/game/events.go
package game

// EventType names a websocket event emitted to a lobby's room or to a
// single user.
type EventType string

const (
	EventPlayerJoined       EventType = "player_joined"
	EventPlayerLeft         EventType = "player_left"
	EventGameStarted        EventType = "game_started"
	EventRoundStarted       EventType = "round_started"
	EventPlayerGuessed      EventType = "player_guessed"
	EventRoundTransition    EventType = "round_transition"
	EventRoundEndedPersonal EventType = "round_ended_personal" // personal, never room-wide
	EventGameEnded          EventType = "game_ended"
)

// Event builds the wire form of an event: the type tag plus its payload
// fields, flattened into one JSON object.
func Event(t EventType, fields map[string]interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(fields)+1)
	msg["type"] = string(t)
	for k, v := range fields {
		msg[k] = v
	}
	return msg
}
