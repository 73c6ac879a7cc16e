// Package orchestrator owns all real-time duel behavior: the ready
// handshake, the countdown, the randomized draw delay, false-start handling
// and shot resolution. It is the single authority for a room's state; every
// client event and timer firing for a room is serialized under that room's
// lock, so there is never concurrency within a room even though rooms
// proceed independently.
package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quickdrawgg/duels/go/internal/duel"
	"github.com/quickdrawgg/duels/go/internal/duel/protocol"
	"github.com/quickdrawgg/duels/go/internal/models"
	"github.com/quickdrawgg/duels/go/internal/room"
)

// Broadcaster fans a message out to a room's connected players. Delivery to
// a closed or unknown endpoint is skipped, never fatal.
type Broadcaster interface {
	Broadcast(roomCode string, message any, excludePlayerID string)
}

// Config holds the duel timing parameters.
type Config struct {
	CountdownDuration     time.Duration
	DrawDelayMin          time.Duration
	DrawDelayMax          time.Duration
	HandsReadyGrace       time.Duration
	SimultaneityThreshold time.Duration
	RoomMaxAge            time.Duration
	CleanupInterval       time.Duration
}

// DefaultConfig returns the stock duel tuning.
func DefaultConfig() Config {
	return Config{
		CountdownDuration:     3 * time.Second,
		DrawDelayMin:          2 * time.Second,
		DrawDelayMax:          5 * time.Second,
		HandsReadyGrace:       500 * time.Millisecond,
		SimultaneityThreshold: 50 * time.Millisecond,
		RoomMaxAge:            time.Hour,
		CleanupInterval:       time.Minute,
	}
}

// Orchestrator drives duel rooms through their state machine with
// wall-clock timers. Dependencies are injected so tests can run on a fake
// clock and a fixed draw delay.
type Orchestrator struct {
	rooms       *room.Registry
	broadcaster Broadcaster
	clock       clockwork.Clock
	cfg         Config

	// drawDelay samples the randomized pre-draw delay for one round.
	drawDelay func() time.Duration

	timersMu sync.Mutex
	timers   map[timerKey]*roomTimer

	// falseStarters tracks, per room, who shot before the draw signal this
	// round.
	falseStartMu  sync.Mutex
	falseStarters map[string]map[string]bool

	// locks serializes event processing per room.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewOrchestrator creates an orchestrator over the given registry and
// broadcaster.
func NewOrchestrator(rooms *room.Registry, broadcaster Broadcaster, clock clockwork.Clock, cfg Config) *Orchestrator {
	o := &Orchestrator{
		rooms:         rooms,
		broadcaster:   broadcaster,
		clock:         clock,
		cfg:           cfg,
		timers:        make(map[timerKey]*roomTimer),
		falseStarters: make(map[string]map[string]bool),
		locks:         make(map[string]*sync.Mutex),
	}

	rng := rand.New(rand.NewSource(clock.Now().UnixNano()))
	var rngMu sync.Mutex
	o.drawDelay = func() time.Duration {
		rngMu.Lock()
		defer rngMu.Unlock()
		spread := cfg.DrawDelayMax - cfg.DrawDelayMin
		if spread <= 0 {
			return cfg.DrawDelayMin
		}
		return cfg.DrawDelayMin + time.Duration(rng.Int63n(int64(spread)))
	}
	return o
}

// lockRoom acquires the per-room event lock, creating it on first use.
func (o *Orchestrator) lockRoom(code string) *sync.Mutex {
	o.locksMu.Lock()
	mu, ok := o.locks[code]
	if !ok {
		mu = &sync.Mutex{}
		o.locks[code] = mu
	}
	o.locksMu.Unlock()
	mu.Lock()
	return mu
}

// releaseRoom drops the lock entry for a room that no longer exists.
func (o *Orchestrator) releaseRoom(code string) {
	o.locksMu.Lock()
	delete(o.locks, code)
	o.locksMu.Unlock()
}

// HandleCreateRoom allocates a fresh room with the player as host.
func (o *Orchestrator) HandleCreateRoom(playerID, playerName string) *models.Room {
	return o.rooms.CreateRoom(playerID, playerName)
}

// HandleJoinRoom adds the player to an existing room under its event lock,
// so a join can never interleave with a round in progress.
func (o *Orchestrator) HandleJoinRoom(code, playerID, playerName string) (*models.Room, error) {
	mu := o.lockRoom(code)
	defer mu.Unlock()

	rm, err := o.rooms.JoinRoom(code, playerID, playerName)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			// Nothing owns this code; drop the lock entry we just created.
			o.releaseRoom(code)
		}
		return nil, err
	}
	return rm, nil
}

// HandlePlayerReady records a ready-button press and advances the room to
// READY once both buttons are down. From RESULT the same handshake starts a
// rematch.
func (o *Orchestrator) HandlePlayerReady(code, playerID string) {
	mu := o.lockRoom(code)
	defer mu.Unlock()

	rm := o.rooms.Room(code)
	if rm == nil {
		return
	}
	p := rm.PlayerByID(playerID)
	if p == nil {
		log.Warn().Str("room_code", code).Str("player_id", playerID).Msg("ready from non-member")
		return
	}
	p.Ready = true

	o.broadcaster.Broadcast(code, protocol.NewGameStateUpdate(rm.State), "")

	if !rm.BothPlayersReady() {
		return
	}
	if rm.State != models.DuelStateLobby && rm.State != models.DuelStateResult {
		// Duplicate ready press mid-round; the flag is already recorded.
		return
	}

	event := duel.EventBothReady
	if rm.State == models.DuelStateResult {
		event = duel.EventRematchReset
	}
	next, ok := duel.Transition(rm.State, event)
	if !ok {
		o.logAnomaly(rm, event)
		return
	}
	rm.State = next
	o.broadcaster.Broadcast(code, protocol.NewGameStateUpdate(next), "")
}

// HandleHandReady records a palm-open signal. The flag update itself never
// changes state; once both palms are open in READY the room moves to
// HANDS_READY and, after a short grace so both players can see it, into the
// countdown.
func (o *Orchestrator) HandleHandReady(code, playerID string, isReady bool) {
	mu := o.lockRoom(code)
	defer mu.Unlock()

	rm := o.rooms.Room(code)
	if rm == nil {
		return
	}
	p := rm.PlayerByID(playerID)
	if p == nil {
		log.Warn().Str("room_code", code).Str("player_id", playerID).Msg("hand signal from non-member")
		return
	}
	p.HandReady = isReady

	o.broadcaster.Broadcast(code, protocol.PlayerHandReady{
		Type:     protocol.TypePlayerHandReady,
		PlayerID: playerID,
		IsReady:  isReady,
	}, "")

	if rm.State != models.DuelStateReady || !rm.BothHandsReady() {
		return
	}

	next, ok := duel.Transition(rm.State, duel.EventBothPalmsOpen)
	if !ok {
		o.logAnomaly(rm, duel.EventBothPalmsOpen)
		return
	}
	rm.State = next
	o.broadcaster.Broadcast(code, protocol.NewGameStateUpdate(next), "")

	o.armTimer(timerGrace, code, o.cfg.HandsReadyGrace, o.onGraceElapsed)
}

// onGraceElapsed confirms HANDS_READY and starts the countdown.
func (o *Orchestrator) onGraceElapsed(code string) {
	mu := o.lockRoom(code)
	defer mu.Unlock()

	rm := o.rooms.Room(code)
	if rm == nil || rm.State != models.DuelStateHandsReady {
		return
	}

	next, ok := duel.Transition(rm.State, duel.EventBothPalmsOpen)
	if !ok {
		o.logAnomaly(rm, duel.EventBothPalmsOpen)
		return
	}
	rm.State = next

	o.armTimer(timerCountdown, code, o.cfg.CountdownDuration, o.onCountdownElapsed)
	o.broadcaster.Broadcast(code, protocol.CountdownStart{
		Type:     protocol.TypeCountdownStart,
		Duration: o.cfg.CountdownDuration.Milliseconds(),
	}, "")
}

// onCountdownElapsed moves the room into WAIT_DRAW and arms the randomized
// draw timer. The delay is sampled fresh every round and never shared with
// clients.
func (o *Orchestrator) onCountdownElapsed(code string) {
	mu := o.lockRoom(code)
	defer mu.Unlock()

	rm := o.rooms.Room(code)
	if rm == nil || rm.State != models.DuelStateCountdown {
		return
	}

	next, ok := duel.Transition(rm.State, duel.EventCountdownElapsed)
	if !ok {
		o.logAnomaly(rm, duel.EventCountdownElapsed)
		return
	}
	rm.State = next

	delay := o.drawDelay()
	o.armTimer(timerDraw, code, delay, o.onDrawTimer)
	log.Debug().Str("room_code", code).Dur("draw_delay", delay).Msg("waiting for draw")

	o.broadcaster.Broadcast(code, protocol.NewGameStateUpdate(next), "")
}

// onDrawTimer fires the draw signal. The server wall-clock timestamp taken
// here is the single source of truth for the round.
func (o *Orchestrator) onDrawTimer(code string) {
	mu := o.lockRoom(code)
	defer mu.Unlock()

	rm := o.rooms.Room(code)
	if rm == nil || rm.State != models.DuelStateWaitDraw {
		return
	}

	next, ok := duel.Transition(rm.State, duel.EventDrawSignalFired)
	if !ok {
		o.logAnomaly(rm, duel.EventDrawSignalFired)
		return
	}
	drawTime := o.clock.Now().UnixMilli()
	rm.DrawTimeMs = &drawTime
	rm.State = next

	o.broadcaster.Broadcast(code, protocol.DrawSignal{
		Type:     protocol.TypeDrawSignal,
		DrawTime: drawTime,
	}, "")
}

// HandlePlayerShot processes a shoot action. Before the draw signal it is a
// false start; in DRAW it is recorded and may resolve the round; anywhere
// else it is a protocol anomaly. Shots from a player who already
// false-started this round never count.
func (o *Orchestrator) HandlePlayerShot(code, playerID string, reactionTimeMs int64) {
	mu := o.lockRoom(code)
	defer mu.Unlock()

	rm := o.rooms.Room(code)
	if rm == nil {
		return
	}
	if o.hasFalseStarted(code, playerID) {
		log.Debug().Str("room_code", code).Str("player_id", playerID).Msg("shot ignored after false start")
		return
	}

	switch rm.State {
	case models.DuelStateWaitDraw:
		o.handleEarlyShot(rm, playerID)
	case models.DuelStateDraw:
		o.recordShot(rm, playerID, reactionTimeMs)
	default:
		log.Warn().
			Str("room_code", code).
			Str("player_id", playerID).
			Str("state", string(rm.State)).
			Msg("shot outside WAIT_DRAW/DRAW ignored")
	}
}

// handleEarlyShot marks a false starter. The round continues for the
// opponent unless both players have now jumped the signal, in which case the
// pending draw timer is useless and the round resolves as a draw with both
// reaction times set to the early-shot sentinel.
func (o *Orchestrator) handleEarlyShot(rm *models.Room, playerID string) {
	o.falseStartMu.Lock()
	set := o.falseStarters[rm.Code]
	if set == nil {
		set = make(map[string]bool)
		o.falseStarters[rm.Code] = set
	}
	set[playerID] = true
	both := len(set) >= models.MaxPlayersPerRoom
	o.falseStartMu.Unlock()

	log.Info().Str("room_code", rm.Code).Str("player_id", playerID).Msg("false start")

	o.broadcaster.Broadcast(rm.Code, protocol.GameStateUpdate{
		Type:               protocol.TypeGameStateUpdate,
		State:              rm.State,
		FalseStartPlayerID: playerID,
	}, "")

	if !both {
		return
	}

	o.cancelTimer(timerDraw, rm.Code)

	next, ok := duel.Transition(rm.State, duel.EventEarlyShot)
	if !ok {
		o.logAnomaly(rm, duel.EventEarlyShot)
		return
	}
	rm.State = next

	sentinel := models.EarlyShotSentinel
	result := models.GameResult{
		WinnerID: nil,
		Player1:  models.PlayerResult{ID: rm.Players[0].ID, ReactionTime: &sentinel},
		Player2:  models.PlayerResult{ID: rm.Players[1].ID, ReactionTime: &sentinel},
	}
	o.finishRound(rm, result)
}

// recordShot stores a shot taken in DRAW and resolves the round when it can:
// immediately if the opponent forfeited by false-starting, otherwise once
// both players have shot.
func (o *Orchestrator) recordShot(rm *models.Room, playerID string, reactionTimeMs int64) {
	p := rm.PlayerByID(playerID)
	if p == nil {
		log.Warn().Str("room_code", rm.Code).Str("player_id", playerID).Msg("shot from non-member")
		return
	}
	rt := reactionTimeMs
	p.ShotTimestamp = &rt

	// The client-reported reaction time stays authoritative for ordering;
	// the server's own arrival-clock measurement is kept as an
	// observability signal for clock or latency skew.
	if rm.DrawTimeMs != nil {
		serverRT := o.clock.Now().UnixMilli() - *rm.DrawTimeMs
		skew := serverRT - reactionTimeMs
		if skew < 0 {
			skew = -skew
		}
		if time.Duration(skew)*time.Millisecond > o.cfg.SimultaneityThreshold {
			log.Warn().
				Str("room_code", rm.Code).
				Str("player_id", playerID).
				Int64("client_reaction_ms", reactionTimeMs).
				Int64("server_reaction_ms", serverRT).
				Msg("client and server reaction times diverge")
		}
	}

	if _, ok := duel.Transition(rm.State, duel.EventShotRecorded); !ok {
		o.logAnomaly(rm, duel.EventShotRecorded)
		return
	}

	if o.anyFalseStarter(rm.Code) {
		o.resolveFalseStartForfeit(rm)
		return
	}
	if rm.BothPlayersShot() {
		o.resolve(rm)
	}
}

// resolveFalseStartForfeit ends the round in favor of the player who did not
// false-start, regardless of their speed.
func (o *Orchestrator) resolveFalseStartForfeit(rm *models.Room) {
	o.cancelTimer(timerDraw, rm.Code)

	var winner *models.Player
	for _, p := range rm.Players {
		if !o.hasFalseStarted(rm.Code, p.ID) && p.ShotTimestamp != nil {
			winner = p
		}
	}
	if winner == nil {
		return
	}

	next, ok := duel.Transition(rm.State, duel.EventResolved)
	if !ok {
		o.logAnomaly(rm, duel.EventResolved)
		return
	}
	rm.State = next

	winnerID := winner.ID
	result := models.GameResult{
		WinnerID: &winnerID,
		Player1:  o.playerResult(rm, rm.Players[0]),
		Player2:  o.playerResult(rm, rm.Players[1]),
	}
	o.finishRound(rm, result)
}

// resolve compares the two recorded reaction times. Within the simultaneity
// threshold the round is a draw; otherwise the smaller time wins.
func (o *Orchestrator) resolve(rm *models.Room) {
	next, ok := duel.Transition(rm.State, duel.EventResolved)
	if !ok {
		o.logAnomaly(rm, duel.EventResolved)
		return
	}
	rm.State = next

	p1, p2 := rm.Players[0], rm.Players[1]
	var winnerID *string
	diff := *p1.ShotTimestamp - *p2.ShotTimestamp
	if diff < 0 {
		diff = -diff
	}
	if time.Duration(diff)*time.Millisecond > o.cfg.SimultaneityThreshold {
		if *p1.ShotTimestamp < *p2.ShotTimestamp {
			winnerID = &p1.ID
		} else {
			winnerID = &p2.ID
		}
	}

	result := models.GameResult{
		WinnerID: winnerID,
		Player1:  o.playerResult(rm, p1),
		Player2:  o.playerResult(rm, p2),
	}
	o.finishRound(rm, result)
}

// playerResult builds one player's result line, substituting the early-shot
// sentinel for false starters.
func (o *Orchestrator) playerResult(rm *models.Room, p *models.Player) models.PlayerResult {
	if o.hasFalseStarted(rm.Code, p.ID) {
		sentinel := models.EarlyShotSentinel
		return models.PlayerResult{ID: p.ID, ReactionTime: &sentinel}
	}
	return models.PlayerResult{ID: p.ID, ReactionTime: p.ShotTimestamp}
}

// finishRound publishes the result and resets all per-round state so the
// room accepts a rematch without re-joining. Entered with the room in
// RESOLVE.
func (o *Orchestrator) finishRound(rm *models.Room, result models.GameResult) {
	next, ok := duel.Transition(rm.State, duel.EventResultComputed)
	if !ok {
		o.logAnomaly(rm, duel.EventResultComputed)
		return
	}
	rm.State = next

	o.broadcaster.Broadcast(rm.Code, protocol.GameResultMessage{
		Type:   protocol.TypeGameResult,
		Result: result,
	}, "")

	rm.ResetRound()
	o.falseStartMu.Lock()
	delete(o.falseStarters, rm.Code)
	o.falseStartMu.Unlock()

	winner := "draw"
	if result.WinnerID != nil {
		winner = *result.WinnerID
	}
	log.Info().Str("room_code", rm.Code).Str("winner", winner).Msg("round resolved")
}

// HandleLeave removes a player from their room, cancels every timer the
// room had armed and notifies the remaining player. Used both for explicit
// LEAVE_ROOM messages and for transport disconnects.
func (o *Orchestrator) HandleLeave(playerID string) {
	code, ok := o.rooms.CodeByPlayer(playerID)
	if !ok {
		return
	}

	mu := o.lockRoom(code)
	defer mu.Unlock()

	rm, _, ok := o.rooms.LeaveRoom(playerID)
	if !ok {
		return
	}

	o.CancelRoom(code)

	if len(rm.Players) == 0 {
		o.releaseRoom(code)
		return
	}

	o.broadcaster.Broadcast(code, protocol.PlayerLeft{
		Type:     protocol.TypePlayerLeft,
		PlayerID: playerID,
	}, "")
}

// Run sweeps expired rooms until ctx is done. Expired rooms get their
// timers cancelled like any other departure.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := o.clock.NewTicker(o.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			for _, code := range o.rooms.Cleanup(o.cfg.RoomMaxAge) {
				o.CancelRoom(code)
				o.releaseRoom(code)
			}
		}
	}
}

func (o *Orchestrator) hasFalseStarted(code, playerID string) bool {
	o.falseStartMu.Lock()
	defer o.falseStartMu.Unlock()
	return o.falseStarters[code][playerID]
}

func (o *Orchestrator) anyFalseStarter(code string) bool {
	o.falseStartMu.Lock()
	defer o.falseStartMu.Unlock()
	return len(o.falseStarters[code]) > 0
}

func (o *Orchestrator) logAnomaly(rm *models.Room, event duel.Event) {
	log.Warn().
		Str("room_code", rm.Code).
		Str("state", string(rm.State)).
		Str("event", string(event)).
		Msg("event has no transition in current state")
}
