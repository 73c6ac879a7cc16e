package models

import "time"

// MaxPlayersPerRoom is the hard cap on room membership. Duels are strictly
// two-player.
const MaxPlayersPerRoom = 2

// Room is an isolated two-player session identified by a short code.
type Room struct {
	Code    string
	HostID  string
	Players []*Player
	State   DuelState

	// DrawTimeMs is the server wall-clock timestamp at which the draw signal
	// fired for the current round. nil until the signal fires.
	DrawTimeMs *int64

	CreatedAt time.Time
}

// PlayerByID returns the member with the given id, or nil.
func (r *Room) PlayerByID(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// IsFull reports whether the room has reached its membership cap.
func (r *Room) IsFull() bool {
	return len(r.Players) >= MaxPlayersPerRoom
}

// BothPlayersReady reports whether both seats are taken and both ready
// buttons are down.
func (r *Room) BothPlayersReady() bool {
	if len(r.Players) != MaxPlayersPerRoom {
		return false
	}
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// BothHandsReady reports whether both seats are taken and both players are
// showing an open palm.
func (r *Room) BothHandsReady() bool {
	if len(r.Players) != MaxPlayersPerRoom {
		return false
	}
	for _, p := range r.Players {
		if !p.HandReady {
			return false
		}
	}
	return true
}

// BothPlayersShot reports whether both players have a recorded shot for the
// current round.
func (r *Room) BothPlayersShot() bool {
	if len(r.Players) != MaxPlayersPerRoom {
		return false
	}
	for _, p := range r.Players {
		if p.ShotTimestamp == nil {
			return false
		}
	}
	return true
}

// ResetRound clears per-round state on the room and all its players so a
// rematch can start without re-joining.
func (r *Room) ResetRound() {
	r.DrawTimeMs = nil
	for _, p := range r.Players {
		p.ResetRound()
	}
}
