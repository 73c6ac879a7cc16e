package models

// Player represents one participant in a duel room. Identity is assigned at
// connection time and is stable for the connection's lifetime.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Per-round fields, reset by the orchestrator at the start of each round.
	Ready     bool `json:"isReady"`   // ready button clicked
	HandReady bool `json:"handReady"` // open palm currently shown

	// ShotTimestamp is the player's reaction time in milliseconds for the
	// current round. nil means the player has not shot this round.
	ShotTimestamp *int64 `json:"shotTimestamp,omitempty"`
}

// ResetRound clears all per-round state on the player.
func (p *Player) ResetRound() {
	p.Ready = false
	p.HandReady = false
	p.ShotTimestamp = nil
}
