package models

// DuelState defines the state of a duel room.
//
// The string values are part of the wire protocol and shared with the client
// state machine, so they must not change.
type DuelState string

const (
	DuelStateIdle       DuelState = "DUEL_IDLE"
	DuelStateLobby      DuelState = "DUEL_LOBBY"
	DuelStateReady      DuelState = "DUEL_READY"       // both players clicked the ready button
	DuelStateHandsReady DuelState = "DUEL_HANDS_READY" // both players show an open palm
	DuelStateCountdown  DuelState = "DUEL_COUNTDOWN"
	DuelStateWaitDraw   DuelState = "DUEL_WAIT_DRAW"
	DuelStateDraw       DuelState = "DUEL_DRAW"
	DuelStateResolve    DuelState = "DUEL_RESOLVE"
	DuelStateResult     DuelState = "DUEL_RESULT"
)
