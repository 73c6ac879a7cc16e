// Package duel holds the pure duel state machine. It maps (state, event)
// pairs to successor states and performs no I/O; the orchestrator drives it
// and owns all timers and side effects.
package duel

import "github.com/quickdrawgg/duels/go/internal/models"

// Event is an input to the duel state machine.
type Event string

const (
	EventCreateRoom       Event = "CREATE_ROOM"
	EventJoinRoom         Event = "JOIN_ROOM"
	EventBothReady        Event = "BOTH_READY_BUTTON"
	EventHandSignal       Event = "HAND_SIGNAL"
	EventBothPalmsOpen    Event = "BOTH_PALMS_OPEN"
	EventCountdownElapsed Event = "COUNTDOWN_ELAPSED"
	EventDrawSignalFired  Event = "DRAW_SIGNAL_FIRED"
	EventEarlyShot        Event = "EARLY_SHOT"
	EventShotRecorded     Event = "SHOT_RECORDED"
	EventResolved         Event = "RESOLVED"
	EventResultComputed   Event = "RESULT_COMPUTED"
	EventRematchReset     Event = "REMATCH_RESET"
	EventPlayerLeft       Event = "PLAYER_LEFT"
	EventLeave            Event = "LEAVE"
)

type transitionKey struct {
	state models.DuelState
	event Event
}

// transitions is the complete duel transition table. Any (state, event) pair
// absent from the table is a protocol anomaly: the state is left unchanged
// and the caller decides whether to log it.
var transitions = map[transitionKey]models.DuelState{
	{models.DuelStateIdle, EventCreateRoom}: models.DuelStateLobby,
	{models.DuelStateIdle, EventJoinRoom}:   models.DuelStateLobby,

	{models.DuelStateLobby, EventJoinRoom}:   models.DuelStateLobby,
	{models.DuelStateLobby, EventBothReady}:  models.DuelStateReady,
	{models.DuelStateLobby, EventLeave}:      models.DuelStateIdle,
	{models.DuelStateLobby, EventPlayerLeft}: models.DuelStateLobby,

	{models.DuelStateReady, EventHandSignal}:    models.DuelStateReady,
	{models.DuelStateReady, EventBothPalmsOpen}: models.DuelStateHandsReady,
	{models.DuelStateReady, EventPlayerLeft}:    models.DuelStateLobby,
	{models.DuelStateReady, EventLeave}:         models.DuelStateIdle,

	{models.DuelStateHandsReady, EventHandSignal}:    models.DuelStateHandsReady,
	{models.DuelStateHandsReady, EventBothPalmsOpen}: models.DuelStateCountdown,
	{models.DuelStateHandsReady, EventPlayerLeft}:    models.DuelStateLobby,
	{models.DuelStateHandsReady, EventLeave}:         models.DuelStateIdle,

	{models.DuelStateCountdown, EventCountdownElapsed}: models.DuelStateWaitDraw,
	{models.DuelStateCountdown, EventPlayerLeft}:       models.DuelStateLobby,
	{models.DuelStateCountdown, EventLeave}:            models.DuelStateIdle,

	{models.DuelStateWaitDraw, EventDrawSignalFired}: models.DuelStateDraw,
	{models.DuelStateWaitDraw, EventEarlyShot}:       models.DuelStateResolve,
	{models.DuelStateWaitDraw, EventPlayerLeft}:      models.DuelStateLobby,
	{models.DuelStateWaitDraw, EventLeave}:           models.DuelStateIdle,

	{models.DuelStateDraw, EventShotRecorded}: models.DuelStateDraw,
	{models.DuelStateDraw, EventResolved}:     models.DuelStateResolve,
	{models.DuelStateDraw, EventPlayerLeft}:   models.DuelStateLobby,
	{models.DuelStateDraw, EventLeave}:        models.DuelStateIdle,

	{models.DuelStateResolve, EventResultComputed}: models.DuelStateResult,

	{models.DuelStateResult, EventRematchReset}: models.DuelStateReady,
	{models.DuelStateResult, EventPlayerLeft}:   models.DuelStateLobby,
	{models.DuelStateResult, EventLeave}:        models.DuelStateIdle,
}

// Transition returns the successor state for the given state and event. When
// the pair has no listed transition it returns the input state and false.
func Transition(state models.DuelState, event Event) (models.DuelState, bool) {
	next, ok := transitions[transitionKey{state, event}]
	if !ok {
		return state, false
	}
	return next, true
}

// States lists every state the machine can occupy, in lifecycle order.
func States() []models.DuelState {
	return []models.DuelState{
		models.DuelStateIdle,
		models.DuelStateLobby,
		models.DuelStateReady,
		models.DuelStateHandsReady,
		models.DuelStateCountdown,
		models.DuelStateWaitDraw,
		models.DuelStateDraw,
		models.DuelStateResolve,
		models.DuelStateResult,
	}
}
