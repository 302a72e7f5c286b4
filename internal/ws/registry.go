// internal/ws/registry.go
package ws

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Conn is a single client's live presence. Each websocket accept mints a new
// Conn with its own ID, so a stale connection can never evict its
// replacement from the registry.
type Conn struct {
	ID     uuid.UUID
	UserID string
	Cancel func()

	// OutChan is drained by the connection's write pump.
	OutChan chan map[string]interface{}

	mu   sync.Mutex
	room string
}

// NewConn builds a connection for userID with a buffered outbound queue.
// userID may be empty for callers without a session identity; such
// connections can still sit in a room and receive broadcasts.
func NewConn(userID string, cancel func()) *Conn {
	return &Conn{
		ID:      uuid.New(),
		UserID:  userID,
		Cancel:  cancel,
		OutChan: make(chan map[string]interface{}, 16),
	}
}

// Write pushes a message onto the connection's queue without blocking.
// Messages to a full or abandoned queue are dropped; the write pump and read
// pump handle actual disconnection.
func (c *Conn) Write(msg map[string]interface{}) {
	select {
	case c.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		log.Warnf("ws: out queue full for user %q, dropped %q event", c.UserID, msgType)
	}
}

// Registry maps logical user ids to their live delivery channel and tracks
// room membership. It is mutated both by the websocket handlers and by each
// lobby's round scheduler, so every operation takes the registry lock.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[uuid.UUID]*Conn
	users map[string]*Conn
}

// NewRegistry returns an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[uuid.UUID]*Conn),
		users: make(map[string]*Conn),
	}
}

// JoinRoom enrolls conn in room, moving it out of any previous room, and
// records conn as the addressable connection for its user. If the user
// already had a connection the new one wins; only one is addressable at a
// time.
func (r *Registry) JoinRoom(conn *Conn, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveRoomLocked(conn)

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]*Conn)
		r.rooms[room] = members
	}
	members[conn.ID] = conn
	conn.setRoom(room)

	if conn.UserID != "" {
		r.users[conn.UserID] = conn
	}
}

// LeaveRoom removes conn from its room and drops the user mapping if conn
// still owns it.
func (r *Registry) LeaveRoom(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveRoomLocked(conn)
	if conn.UserID != "" {
		if cur, ok := r.users[conn.UserID]; ok && cur.ID == conn.ID {
			delete(r.users, conn.UserID)
		}
	}
}

func (r *Registry) leaveRoomLocked(conn *Conn) {
	room := conn.currentRoom()
	if room == "" {
		return
	}
	if members, ok := r.rooms[room]; ok {
		delete(members, conn.ID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	conn.setRoom("")
}

// UnbindUser unconditionally drops the delivery mapping for userID, e.g.
// when the user leaves their lobby over HTTP rather than the socket.
func (r *Registry) UnbindUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
}

// Broadcast delivers msg to every connection currently in room. Broadcasts
// into a room nobody occupies are no-ops.
func (r *Registry) Broadcast(room string, msg map[string]interface{}) {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.rooms[room]))
	for _, c := range r.rooms[room] {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		c.Write(msg)
	}
}

// SendToUser delivers msg only if a live mapping exists for userID. Without
// one the message is silently dropped; personal results are best-effort.
func (r *Registry) SendToUser(userID string, msg map[string]interface{}) {
	r.mu.Lock()
	conn, ok := r.users[userID]
	r.mu.Unlock()
	if !ok {
		return
	}
	conn.Write(msg)
}

// HasUser reports whether userID currently has an addressable connection.
func (r *Registry) HasUser(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[userID]
	return ok
}

func (c *Conn) setRoom(room string) {
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
}

func (c *Conn) currentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}
