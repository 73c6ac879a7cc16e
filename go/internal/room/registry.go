// Package room implements the in-memory session registry: room lifecycle,
// player membership, code allocation and TTL cleanup. All state lives for
// the process lifetime only.
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quickdrawgg/duels/go/internal/models"
)

var (
	// ErrRoomNotFound is returned when no live room has the given code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull is returned when a room already holds two players.
	ErrRoomFull = errors.New("room is full")
)

// Registry owns the room table. Lookups by code and by player id are both
// O(1). The registry lock covers only table membership; per-room event
// serialization is the orchestrator's job.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[string]*models.Room
	playerRoom map[string]string // player id -> room code
	codes      *codeGenerator
	clock      clockwork.Clock
}

// NewRegistry creates an empty registry on the given clock.
func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		rooms:      make(map[string]*models.Room),
		playerRoom: make(map[string]string),
		codes:      newCodeGenerator(clock.Now().UnixNano()),
		clock:      clock,
	}
}

// CreateRoom allocates a fresh room with a unique code and the host as its
// only member.
func (r *Registry) CreateRoom(hostID, hostName string) *models.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := r.codes.next(func(c string) bool {
		_, taken := r.rooms[c]
		return taken
	})

	room := &models.Room{
		Code:      code,
		HostID:    hostID,
		Players:   []*models.Player{{ID: hostID, Name: hostName}},
		State:     models.DuelStateLobby,
		CreatedAt: r.clock.Now(),
	}
	r.rooms[code] = room
	r.playerRoom[hostID] = code

	log.Info().Str("room_code", code).Str("host", hostName).Msg("room created")
	return room
}

// JoinRoom adds a player to an existing room.
func (r *Registry) JoinRoom(code, playerID, playerName string) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.IsFull() {
		return nil, ErrRoomFull
	}

	room.Players = append(room.Players, &models.Player{ID: playerID, Name: playerName})
	r.playerRoom[playerID] = code

	log.Info().Str("room_code", code).Str("player", playerName).Msg("player joined room")
	return room, nil
}

// LeaveRoom removes the player from whatever room they are in. The room is
// deleted once empty; otherwise the next player is promoted to host and the
// room falls back to LOBBY if a round was in progress. Returns the room, a
// flag for whether the leaver was host, and false if the player was not in
// any room.
func (r *Registry) LeaveRoom(playerID string) (*models.Room, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.playerRoom[playerID]
	if !ok {
		return nil, false, false
	}
	room, ok := r.rooms[code]
	if !ok {
		delete(r.playerRoom, playerID)
		return nil, false, false
	}

	wasHost := room.HostID == playerID
	kept := room.Players[:0]
	for _, p := range room.Players {
		if p.ID != playerID {
			kept = append(kept, p)
		}
	}
	room.Players = kept
	delete(r.playerRoom, playerID)

	log.Info().Str("room_code", code).Str("player_id", playerID).Msg("player left room")

	if len(room.Players) == 0 {
		delete(r.rooms, code)
		log.Info().Str("room_code", code).Msg("room deleted")
		return room, wasHost, true
	}

	if wasHost {
		room.HostID = room.Players[0].ID
	}
	if room.State != models.DuelStateLobby && room.State != models.DuelStateIdle {
		room.State = models.DuelStateLobby
	}
	return room, wasHost, true
}

// Room returns the room with the given code, or nil.
func (r *Registry) Room(code string) *models.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[code]
}

// RoomByPlayer returns the room the player currently occupies, or nil.
func (r *Registry) RoomByPlayer(playerID string) *models.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.playerRoom[playerID]
	if !ok {
		return nil
	}
	return r.rooms[code]
}

// CodeByPlayer returns the code of the room the player occupies.
func (r *Registry) CodeByPlayer(playerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.playerRoom[playerID]
	return code, ok
}

// PlayerIDs returns the ids of the room's current members. A nil slice means
// the room no longer exists.
func (r *Registry) PlayerIDs(code string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(room.Players))
	for _, p := range room.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// Cleanup removes every room older than maxAge regardless of activity and
// returns the removed codes so the caller can cancel their timers.
func (r *Registry) Cleanup(maxAge time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var removed []string
	for code, room := range r.rooms {
		if now.Sub(room.CreatedAt) <= maxAge {
			continue
		}
		for _, p := range room.Players {
			delete(r.playerRoom, p.ID)
		}
		delete(r.rooms, code)
		removed = append(removed, code)
		log.Info().Str("room_code", code).Msg("room expired")
	}
	return removed
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
