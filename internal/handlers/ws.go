// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/EliasL15/music-game-backend/internal/auth"
	"github.com/EliasL15/music-game-backend/internal/ws"
)

// wsMessage is the inbound connection-lifecycle protocol: a client joins or
// leaves a lobby's room.
type wsMessage struct {
	Type      string `json:"type"`
	LobbyCode string `json:"lobby_code"`
}

// HandleWS upgrades the connection and pumps events between the registry
// and the socket. The session identity is read from the cookie before the
// upgrade; a caller without one can still occupy a room and receive
// broadcasts, but never personal results.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromRequest(r)

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"game"},
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		s.Log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "game" {
		c.Close(BadSubprotocolError, "client must speak the game subprotocol")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	conn := ws.NewConn(userID, cancel)

	s.Log.WithFields(logrus.Fields{
		"user":   userID,
		"remote": r.RemoteAddr,
	}).Info("websocket connected")

	go s.writePump(ctx, c, conn)
	s.readPump(ctx, c, conn)

	// Read pump exited: drop the room membership and, if this connection is
	// still the user's addressable one, the delivery mapping.
	s.Conns.LeaveRoom(conn)
	cancel()
	s.Log.WithField("user", userID).Info("websocket disconnected")
}

// readPump consumes join/leave messages until the connection closes.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, conn *ws.Conn) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				!strings.Contains(err.Error(), "context canceled") {
				s.Log.Warnf("websocket read error for user %q: %v", conn.UserID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Log.Warnf("invalid websocket json from user %q: %v", conn.UserID, err)
			continue
		}

		switch msg.Type {
		case "join":
			if msg.LobbyCode == "" {
				continue
			}
			s.Conns.JoinRoom(conn, msg.LobbyCode)
			s.Log.WithFields(logrus.Fields{
				"user":  conn.UserID,
				"lobby": msg.LobbyCode,
			}).Debug("connection joined room")
		case "leave":
			s.Conns.LeaveRoom(conn)
			s.Log.WithFields(logrus.Fields{
				"user":  conn.UserID,
				"lobby": msg.LobbyCode,
			}).Debug("connection left room")
		default:
			s.Log.Warnf("unknown websocket action %q from user %q", msg.Type, conn.UserID)
		}
	}
}

// writePump drains the connection's outbound queue and keeps the socket
// alive with periodic pings.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, conn *ws.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-conn.OutChan:
			data, err := json.Marshal(msg)
			if err != nil {
				s.Log.Warnf("failed to marshal outgoing event for user %q: %v", conn.UserID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.Log.Warnf("websocket write failed for user %q: %v", conn.UserID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.Log.Warnf("websocket ping failed for user %q, assuming disconnect", conn.UserID)
				return
			}
		}
	}
}
