// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes, for closure reasons more specific than the
// standard set.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
)
