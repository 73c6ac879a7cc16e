package orchestrator

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quickdrawgg/duels/go/internal/duel/protocol"
	"github.com/quickdrawgg/duels/go/internal/models"
	"github.com/quickdrawgg/duels/go/internal/room"
)

type sentMessage struct {
	roomCode string
	message  any
	exclude  string
}

// fakeBroadcaster captures every broadcast on a channel so tests can wait
// for messages produced by timer goroutines.
type fakeBroadcaster struct {
	ch chan sentMessage
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{ch: make(chan sentMessage, 128)}
}

func (f *fakeBroadcaster) Broadcast(roomCode string, message any, excludePlayerID string) {
	f.ch <- sentMessage{roomCode: roomCode, message: message, exclude: excludePlayerID}
}

// await drains broadcasts until one satisfies match, failing after a real
// two-second timeout.
func (f *fakeBroadcaster) await(t *testing.T, match func(any) bool) any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case sent := <-f.ch:
			if match(sent.message) {
				return sent.message
			}
		case <-deadline:
			t.Fatal("timed out waiting for broadcast")
			return nil
		}
	}
}

// assertNone fails if any captured broadcast within the window satisfies
// match.
func (f *fakeBroadcaster) assertNone(t *testing.T, match func(any) bool) {
	t.Helper()
	deadline := time.After(50 * time.Millisecond)
	for {
		select {
		case sent := <-f.ch:
			if match(sent.message) {
				t.Fatalf("unexpected broadcast: %#v", sent.message)
			}
		case <-deadline:
			return
		}
	}
}

func isStateUpdate(state models.DuelState) func(any) bool {
	return func(m any) bool {
		u, ok := m.(protocol.GameStateUpdate)
		return ok && u.State == state && u.FalseStartPlayerID == ""
	}
}

func isDrawSignal(m any) bool {
	_, ok := m.(protocol.DrawSignal)
	return ok
}

func isGameResult(m any) bool {
	_, ok := m.(protocol.GameResultMessage)
	return ok
}

type duelFixture struct {
	clock *clockwork.FakeClock
	reg   *room.Registry
	bc    *fakeBroadcaster
	orch  *Orchestrator
	code  string
}

// newDuelFixture builds a two-player room with a deterministic 2s draw
// delay on a fake clock.
func newDuelFixture(t *testing.T) *duelFixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	reg := room.NewRegistry(clock)
	bc := newFakeBroadcaster()
	orch := NewOrchestrator(reg, bc, clock, DefaultConfig())
	orch.drawDelay = func() time.Duration { return 2 * time.Second }

	rm := reg.CreateRoom("p1", "Wyatt")
	if _, err := reg.JoinRoom(rm.Code, "p2", "Doc"); err != nil {
		t.Fatalf("join: %v", err)
	}
	return &duelFixture{clock: clock, reg: reg, bc: bc, orch: orch, code: rm.Code}
}

// advanceToDraw walks the fixture from LOBBY through the handshake,
// countdown and draw delay until the draw signal has fired.
func (f *duelFixture) advanceToDraw(t *testing.T) {
	t.Helper()
	f.advanceToWaitDraw(t)
	f.clock.Advance(2 * time.Second)
	f.bc.await(t, isDrawSignal)
}

// advanceToWaitDraw stops just before the draw signal, with the draw timer
// armed.
func (f *duelFixture) advanceToWaitDraw(t *testing.T) {
	t.Helper()
	f.orch.HandlePlayerReady(f.code, "p1")
	f.orch.HandlePlayerReady(f.code, "p2")
	f.bc.await(t, isStateUpdate(models.DuelStateReady))

	f.orch.HandleHandReady(f.code, "p1", true)
	f.orch.HandleHandReady(f.code, "p2", true)
	f.bc.await(t, isStateUpdate(models.DuelStateHandsReady))

	f.clock.Advance(500 * time.Millisecond)
	f.bc.await(t, func(m any) bool {
		_, ok := m.(protocol.CountdownStart)
		return ok
	})

	f.clock.Advance(3 * time.Second)
	f.bc.await(t, isStateUpdate(models.DuelStateWaitDraw))
}

func (f *duelFixture) result(t *testing.T) models.GameResult {
	t.Helper()
	msg := f.bc.await(t, isGameResult)
	return msg.(protocol.GameResultMessage).Result
}

func TestFasterShotWins(t *testing.T) {
	f := newDuelFixture(t)
	f.advanceToDraw(t)

	f.orch.HandlePlayerShot(f.code, "p1", 120)
	f.orch.HandlePlayerShot(f.code, "p2", 300)

	result := f.result(t)
	if result.WinnerID == nil || *result.WinnerID != "p1" {
		t.Fatalf("expected p1 to win, got %+v", result)
	}
	if result.Player1.ReactionTime == nil || *result.Player1.ReactionTime != 120 {
		t.Fatalf("unexpected p1 reaction: %+v", result.Player1)
	}
	if result.Player2.ReactionTime == nil || *result.Player2.ReactionTime != 300 {
		t.Fatalf("unexpected p2 reaction: %+v", result.Player2)
	}
}

func TestSimultaneousShotsDraw(t *testing.T) {
	f := newDuelFixture(t)
	f.advanceToDraw(t)

	f.orch.HandlePlayerShot(f.code, "p1", 100)
	f.orch.HandlePlayerShot(f.code, "p2", 130)

	result := f.result(t)
	if result.WinnerID != nil {
		t.Fatalf("expected a draw within the 50ms threshold, winner %s", *result.WinnerID)
	}
}

func TestFalseStartForfeitsToOpponent(t *testing.T) {
	f := newDuelFixture(t)
	f.advanceToWaitDraw(t)

	// p1 jumps the signal.
	f.orch.HandlePlayerShot(f.code, "p1", 0)
	notice := f.bc.await(t, func(m any) bool {
		u, ok := m.(protocol.GameStateUpdate)
		return ok && u.FalseStartPlayerID != ""
	}).(protocol.GameStateUpdate)
	if notice.FalseStartPlayerID != "p1" {
		t.Fatalf("false start notice names %s, want p1", notice.FalseStartPlayerID)
	}

	// The duel continues: the draw still fires and p2 may shoot normally.
	f.clock.Advance(2 * time.Second)
	f.bc.await(t, isDrawSignal)
	f.orch.HandlePlayerShot(f.code, "p2", 900)

	result := f.result(t)
	if result.WinnerID == nil || *result.WinnerID != "p2" {
		t.Fatalf("expected p2 to win by forfeit, got %+v", result)
	}
	if result.Player1.ReactionTime == nil || *result.Player1.ReactionTime != models.EarlyShotSentinel {
		t.Fatalf("expected early-shot sentinel for p1, got %+v", result.Player1)
	}
	if result.Player2.ReactionTime == nil || *result.Player2.ReactionTime != 900 {
		t.Fatalf("unexpected p2 reaction: %+v", result.Player2)
	}
}

func TestBothFalseStartsDrawImmediately(t *testing.T) {
	f := newDuelFixture(t)
	f.advanceToWaitDraw(t)

	f.orch.HandlePlayerShot(f.code, "p1", 0)
	f.orch.HandlePlayerShot(f.code, "p2", 0)

	result := f.result(t)
	if result.WinnerID != nil {
		t.Fatalf("expected a draw, winner %s", *result.WinnerID)
	}
	if *result.Player1.ReactionTime != models.EarlyShotSentinel ||
		*result.Player2.ReactionTime != models.EarlyShotSentinel {
		t.Fatalf("expected both sentinels, got %+v", result)
	}

	// The draw timer was cancelled; advancing past it must not produce a
	// draw signal.
	f.clock.Advance(10 * time.Second)
	f.bc.assertNone(t, isDrawSignal)
}

func TestShotsFromFalseStarterNeverCount(t *testing.T) {
	f := newDuelFixture(t)
	f.advanceToWaitDraw(t)

	f.orch.HandlePlayerShot(f.code, "p1", 0)
	f.clock.Advance(2 * time.Second)
	f.bc.await(t, isDrawSignal)

	// p1 shoots again after the draw; it must not resolve anything.
	f.orch.HandlePlayerShot(f.code, "p1", 50)
	f.bc.assertNone(t, isGameResult)

	f.orch.HandlePlayerShot(f.code, "p2", 400)
	result := f.result(t)
	if result.WinnerID == nil || *result.WinnerID != "p2" {
		t.Fatalf("expected p2 to win, got %+v", result)
	}
}

func TestRoundResetAllowsRematch(t *testing.T) {
	f := newDuelFixture(t)
	f.advanceToDraw(t)
	f.orch.HandlePlayerShot(f.code, "p1", 120)
	f.orch.HandlePlayerShot(f.code, "p2", 300)
	f.result(t)

	rm := f.reg.Room(f.code)
	if rm.State != models.DuelStateResult {
		t.Fatalf("room state after result = %s", rm.State)
	}
	for _, p := range rm.Players {
		if p.Ready || p.HandReady || p.ShotTimestamp != nil {
			t.Fatalf("per-round fields not reset: %+v", p)
		}
	}
	if rm.DrawTimeMs != nil {
		t.Fatal("draw time not reset")
	}

	// A fresh handshake works without re-joining.
	f.orch.HandlePlayerReady(f.code, "p1")
	f.orch.HandlePlayerReady(f.code, "p2")
	f.bc.await(t, isStateUpdate(models.DuelStateReady))
}

func TestLeaveCancelsArmedTimers(t *testing.T) {
	f := newDuelFixture(t)
	f.advanceToWaitDraw(t)

	f.orch.HandleLeave("p2")
	f.bc.await(t, func(m any) bool {
		left, ok := m.(protocol.PlayerLeft)
		return ok && left.PlayerID == "p2"
	})
	if rm := f.reg.Room(f.code); rm.State != models.DuelStateLobby {
		t.Fatalf("room state after leave = %s, want LOBBY", rm.State)
	}

	f.clock.Advance(10 * time.Second)
	f.bc.assertNone(t, isDrawSignal)
}

func TestLeaveDuringCountdownCancelsCountdown(t *testing.T) {
	f := newDuelFixture(t)
	f.orch.HandlePlayerReady(f.code, "p1")
	f.orch.HandlePlayerReady(f.code, "p2")
	f.orch.HandleHandReady(f.code, "p1", true)
	f.orch.HandleHandReady(f.code, "p2", true)
	f.clock.Advance(500 * time.Millisecond)
	f.bc.await(t, func(m any) bool {
		_, ok := m.(protocol.CountdownStart)
		return ok
	})

	f.orch.HandleLeave("p1")

	f.clock.Advance(10 * time.Second)
	f.bc.assertNone(t, isStateUpdate(models.DuelStateWaitDraw))
	f.bc.assertNone(t, isDrawSignal)
}

func TestDrawSignalCarriesServerTimestamp(t *testing.T) {
	f := newDuelFixture(t)
	f.advanceToWaitDraw(t)

	f.clock.Advance(2 * time.Second)
	msg := f.bc.await(t, isDrawSignal).(protocol.DrawSignal)

	want := f.clock.Now().UnixMilli()
	if msg.DrawTime != want {
		t.Fatalf("draw time %d, want server clock %d", msg.DrawTime, want)
	}
	rm := f.reg.Room(f.code)
	if rm.DrawTimeMs == nil || *rm.DrawTimeMs != want {
		t.Fatalf("room draw time not recorded: %+v", rm.DrawTimeMs)
	}
}

func TestShotOutsideDrawStatesIgnored(t *testing.T) {
	f := newDuelFixture(t)

	// Room is in LOBBY; a shot is a protocol anomaly, not a crash and not a
	// recorded timestamp.
	f.orch.HandlePlayerShot(f.code, "p1", 100)
	if p := f.reg.Room(f.code).PlayerByID("p1"); p.ShotTimestamp != nil {
		t.Fatal("shot recorded outside WAIT_DRAW/DRAW")
	}
	f.bc.assertNone(t, isGameResult)
}

func TestExpiredRoomsGetTimersCancelled(t *testing.T) {
	f := newDuelFixture(t)
	f.advanceToWaitDraw(t)

	removed := f.reg.Cleanup(0)
	if len(removed) != 1 || removed[0] != f.code {
		t.Fatalf("expected room %s removed, got %v", f.code, removed)
	}
	f.orch.CancelRoom(f.code)

	f.clock.Advance(10 * time.Second)
	f.bc.assertNone(t, isDrawSignal)
}
