// internal/lobby/lobby_store.go
package lobby

import (
	"fmt"
	"math/rand"
	"sync"
)

// LobbyStore manages active ephemeral lobbies in memory, keyed by their
// 6-digit codes. Codes are unique among live lobbies; a released code may be
// reused by a later lobby.
type LobbyStore struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby
}

// NewLobbyStore initializes and returns an empty LobbyStore.
func NewLobbyStore() *LobbyStore {
	return &LobbyStore{
		lobbies: make(map[string]*Lobby),
	}
}

// Create generates a unique code, seeds a lobby with hostID as its host and
// registers it. The lobby's OnEmpty callback is wired to delete it from the
// store once the last player leaves.
func (s *LobbyStore) Create(hostID string) *Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := s.generateCodeLocked()
	l := NewLobby(code, hostID)
	l.OnEmpty = func(code string) {
		s.Delete(code)
	}
	s.lobbies[code] = l
	return l
}

// generateCodeLocked draws uniform random 6-digit codes until one is free.
// Assumes the store lock is held.
func (s *LobbyStore) generateCodeLocked() string {
	for {
		code := fmt.Sprintf("%06d", rand.Intn(1000000))
		if _, taken := s.lobbies[code]; !taken {
			return code
		}
	}
}

// Get retrieves a lobby by code.
func (s *LobbyStore) Get(code string) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[code]
	return l, ok
}

// Delete removes a lobby from the store. Safe to call for codes that have
// already been released.
func (s *LobbyStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, code)
}

// Len reports the number of live lobbies.
func (s *LobbyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lobbies)
}
