package models

// EarlyShotSentinel is the out-of-band reaction time reported for a player
// who shot before the draw signal. It is a deliberate wire-level sentinel,
// distinct from a nil reaction time which means the player never shot.
const EarlyShotSentinel int64 = -1

// PlayerResult is one player's line in a game result.
type PlayerResult struct {
	ID string `json:"id"`
	// ReactionTime is milliseconds since the draw signal, EarlyShotSentinel
	// for a false start, or nil if the player did not shoot.
	ReactionTime *int64 `json:"reactionTime"`
}

// GameResult is the outcome of one duel round.
type GameResult struct {
	// WinnerID is nil when the round is a draw.
	WinnerID *string      `json:"winnerId"`
	Player1  PlayerResult `json:"player1"`
	Player2  PlayerResult `json:"player2"`
}
