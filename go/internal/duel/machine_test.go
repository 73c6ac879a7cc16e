package duel

import (
	"testing"

	"github.com/quickdrawgg/duels/go/internal/models"
)

func TestTransitionHappyPath(t *testing.T) {
	steps := []struct {
		event Event
		want  models.DuelState
	}{
		{EventCreateRoom, models.DuelStateLobby},
		{EventJoinRoom, models.DuelStateLobby},
		{EventBothReady, models.DuelStateReady},
		{EventHandSignal, models.DuelStateReady},
		{EventBothPalmsOpen, models.DuelStateHandsReady},
		{EventBothPalmsOpen, models.DuelStateCountdown},
		{EventCountdownElapsed, models.DuelStateWaitDraw},
		{EventDrawSignalFired, models.DuelStateDraw},
		{EventShotRecorded, models.DuelStateDraw},
		{EventShotRecorded, models.DuelStateDraw},
		{EventResolved, models.DuelStateResolve},
		{EventResultComputed, models.DuelStateResult},
		{EventRematchReset, models.DuelStateReady},
	}

	state := models.DuelStateIdle
	for i, step := range steps {
		next, ok := Transition(state, step.event)
		if !ok {
			t.Fatalf("step %d: no transition for (%s, %s)", i, state, step.event)
		}
		if next != step.want {
			t.Fatalf("step %d: (%s, %s) = %s, want %s", i, state, step.event, next, step.want)
		}
		state = next
	}
}

func TestTransitionEarlyShotResolves(t *testing.T) {
	next, ok := Transition(models.DuelStateWaitDraw, EventEarlyShot)
	if !ok {
		t.Fatal("expected early shot to be a valid transition from WAIT_DRAW")
	}
	if next != models.DuelStateResolve {
		t.Fatalf("early shot from WAIT_DRAW = %s, want %s", next, models.DuelStateResolve)
	}
}

func TestTransitionPlayerLeftFallsBackToLobby(t *testing.T) {
	for _, state := range []models.DuelState{
		models.DuelStateReady,
		models.DuelStateHandsReady,
		models.DuelStateCountdown,
		models.DuelStateWaitDraw,
		models.DuelStateDraw,
		models.DuelStateResult,
	} {
		next, ok := Transition(state, EventPlayerLeft)
		if !ok {
			t.Fatalf("expected PLAYER_LEFT to be valid in %s", state)
		}
		if next != models.DuelStateLobby {
			t.Fatalf("PLAYER_LEFT in %s = %s, want %s", state, next, models.DuelStateLobby)
		}
	}
}

func TestTransitionAnomalyLeavesStateUnchanged(t *testing.T) {
	cases := []struct {
		state models.DuelState
		event Event
	}{
		{models.DuelStateIdle, EventShotRecorded},
		{models.DuelStateLobby, EventDrawSignalFired},
		{models.DuelStateCountdown, EventShotRecorded},
		{models.DuelStateResult, EventCountdownElapsed},
		{models.DuelStateResolve, EventLeave},
	}
	for _, tc := range cases {
		next, ok := Transition(tc.state, tc.event)
		if ok {
			t.Fatalf("expected (%s, %s) to be an anomaly", tc.state, tc.event)
		}
		if next != tc.state {
			t.Fatalf("anomaly (%s, %s) changed state to %s", tc.state, tc.event, next)
		}
	}
}

// TestTransitionClosedOverStates feeds every event to every state and checks
// the machine can never land outside the fixed state set.
func TestTransitionClosedOverStates(t *testing.T) {
	valid := make(map[models.DuelState]bool)
	for _, s := range States() {
		valid[s] = true
	}

	events := []Event{
		EventCreateRoom, EventJoinRoom, EventBothReady, EventHandSignal,
		EventBothPalmsOpen, EventCountdownElapsed, EventDrawSignalFired,
		EventEarlyShot, EventShotRecorded, EventResolved, EventResultComputed,
		EventRematchReset, EventPlayerLeft, EventLeave,
	}
	for _, state := range States() {
		for _, event := range events {
			next, _ := Transition(state, event)
			if !valid[next] {
				t.Fatalf("(%s, %s) produced unknown state %s", state, event, next)
			}
		}
	}
}
