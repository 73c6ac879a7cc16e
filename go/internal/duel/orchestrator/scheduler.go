package orchestrator

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// timerKind distinguishes the three one-shot timers a room can own. A room
// has at most one live timer per kind at any time.
type timerKind string

const (
	timerGrace     timerKind = "grace"     // HANDS_READY -> COUNTDOWN confirmation delay
	timerCountdown timerKind = "countdown" // COUNTDOWN -> WAIT_DRAW
	timerDraw      timerKind = "draw"      // WAIT_DRAW -> DRAW, randomized delay
)

type timerKey struct {
	kind timerKind
	code string
}

// roomTimer pairs a clock timer with an explicit cancel handle so a timer
// armed for round N can never fire into round N+1.
type roomTimer struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

// armTimer schedules fire to run after d, keyed by (kind, room code).
// Arming always replaces: any previous timer of the same kind for the room
// is cancelled first. The fire callback runs on its own goroutine and must
// acquire the room lock and re-check state before acting.
func (o *Orchestrator) armTimer(kind timerKind, code string, d time.Duration, fire func(code string)) {
	rt := &roomTimer{
		timer:  o.clock.NewTimer(d),
		cancel: make(chan struct{}),
	}

	o.timersMu.Lock()
	key := timerKey{kind, code}
	if existing, ok := o.timers[key]; ok {
		close(existing.cancel)
		stopAndDrainTimer(existing.timer)
		log.Debug().Str("room_code", code).Str("kind", string(kind)).Msg("replaced existing timer")
	}
	o.timers[key] = rt
	o.timersMu.Unlock()

	go func() {
		select {
		case <-rt.timer.Chan():
			o.removeTimer(key, rt)
			fire(code)
		case <-rt.cancel:
		}
	}()

	log.Debug().
		Str("room_code", code).
		Str("kind", string(kind)).
		Dur("duration", d).
		Msg("armed one-shot timer")
}

// cancelTimer cancels and removes a room's timer of the given kind, if any.
func (o *Orchestrator) cancelTimer(kind timerKind, code string) {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()

	key := timerKey{kind, code}
	if rt, ok := o.timers[key]; ok {
		close(rt.cancel)
		stopAndDrainTimer(rt.timer)
		delete(o.timers, key)
		log.Debug().Str("room_code", code).Str("kind", string(kind)).Msg("cancelled timer")
	}
}

// removeTimer drops a fired timer from the table. The identity check keeps a
// fire that raced with a replacement from deleting the replacement's entry.
func (o *Orchestrator) removeTimer(key timerKey, rt *roomTimer) {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	if current, ok := o.timers[key]; ok && current == rt {
		delete(o.timers, key)
	}
}

// CancelRoom tears down every timer the room owns and forgets its false
// starters. Called when a player leaves and when a room expires.
func (o *Orchestrator) CancelRoom(code string) {
	o.cancelTimer(timerGrace, code)
	o.cancelTimer(timerCountdown, code)
	o.cancelTimer(timerDraw, code)

	o.falseStartMu.Lock()
	delete(o.falseStarters, code)
	o.falseStartMu.Unlock()
}

// stopAndDrainTimer stops a timer and drains its channel if it already
// fired, per the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
