// Package protocol defines the JSON message vocabulary exchanged with duel
// clients over the websocket. Messages are flat objects tagged with a "type"
// field and are self-contained: every room-scoped message carries its room
// code, since the protocol itself is connectionless even though the socket
// is stateful.
package protocol

import (
	"encoding/json"

	"github.com/quickdrawgg/duels/go/internal/models"
)

// MessageType tags every message in both directions.
type MessageType string

const (
	// Client -> server.
	TypeCreateRoom  MessageType = "CREATE_ROOM"
	TypeJoinRoom    MessageType = "JOIN_ROOM"
	TypePlayerReady MessageType = "PLAYER_READY"
	TypeHandReady   MessageType = "HAND_READY"
	TypePlayerShot  MessageType = "PLAYER_SHOT"
	TypeLeaveRoom   MessageType = "LEAVE_ROOM"

	// Server -> client.
	TypeRoomCreated        MessageType = "ROOM_CREATED"
	TypeRoomJoined         MessageType = "ROOM_JOINED"
	TypePlayerJoined       MessageType = "PLAYER_JOINED"
	TypePlayerLeft         MessageType = "PLAYER_LEFT"
	TypePlayerReadyChanged MessageType = "PLAYER_READY_CHANGED"
	TypePlayerHandReady    MessageType = "PLAYER_HAND_READY"
	TypeGameStateUpdate    MessageType = "GAME_STATE_UPDATE"
	TypeCountdownStart     MessageType = "COUNTDOWN_START"
	TypeDrawSignal         MessageType = "DRAW_SIGNAL"
	TypeGameResult         MessageType = "GAME_RESULT"
	TypeError              MessageType = "ERROR"

	// WebRTC signaling, relayed verbatim between peers. The server rewrites
	// only the sender-identifying field and never inspects the payload.
	TypeRTCOffer        MessageType = "RTC_OFFER"
	TypeRTCAnswer       MessageType = "RTC_ANSWER"
	TypeRTCIceCandidate MessageType = "RTC_ICE_CANDIDATE"
)

// Error codes surfaced to clients.
const (
	ErrCodeRoomNotFound   = "ROOM_NOT_FOUND"
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
)

// ClientMessage is the inbound envelope. All client message variants share
// one struct; which fields are meaningful depends on Type.
type ClientMessage struct {
	Type       MessageType `json:"type"`
	RoomCode   string      `json:"roomCode,omitempty"`
	PlayerName string      `json:"playerName,omitempty"`

	// HAND_READY: palm open (true) or withdrawn (false).
	IsReady bool `json:"isReady,omitempty"`

	// PLAYER_SHOT: client-measured milliseconds since the draw signal.
	ReactionTime int64 `json:"reactionTime,omitempty"`

	// RTC_*: relay target and opaque payloads.
	TargetPlayerID string          `json:"targetPlayerId,omitempty"`
	Offer          json.RawMessage `json:"offer,omitempty"`
	Answer         json.RawMessage `json:"answer,omitempty"`
	Candidate      json.RawMessage `json:"candidate,omitempty"`
}

// RoomCreated acknowledges a CREATE_ROOM directly to the host.
type RoomCreated struct {
	Type     MessageType `json:"type"`
	RoomCode string      `json:"roomCode"`
	PlayerID string      `json:"playerId"`
}

// RoomJoined acknowledges a JOIN_ROOM directly to the joiner with the full
// member list.
type RoomJoined struct {
	Type     MessageType      `json:"type"`
	RoomCode string           `json:"roomCode"`
	PlayerID string           `json:"playerId"`
	Players  []*models.Player `json:"players"`
}

// PlayerJoined notifies existing members about a new player.
type PlayerJoined struct {
	Type   MessageType    `json:"type"`
	Player *models.Player `json:"player"`
}

// PlayerLeft notifies remaining members that a player departed.
type PlayerLeft struct {
	Type     MessageType `json:"type"`
	PlayerID string      `json:"playerId"`
}

// PlayerHandReady mirrors one player's palm state to the room.
type PlayerHandReady struct {
	Type     MessageType `json:"type"`
	PlayerID string      `json:"playerId"`
	IsReady  bool        `json:"isReady"`
}

// GameStateUpdate announces a duel state change. FalseStartPlayerID is set
// only on the false-start notice, where the state itself does not change.
type GameStateUpdate struct {
	Type               MessageType      `json:"type"`
	State              models.DuelState `json:"state"`
	FalseStartPlayerID string           `json:"falseStartPlayerId,omitempty"`
}

// CountdownStart opens the pre-draw countdown.
type CountdownStart struct {
	Type     MessageType `json:"type"`
	Duration int64       `json:"duration"` // milliseconds
}

// DrawSignal carries the authoritative server timestamp of the draw cue.
// Clients use it only to start a local stopwatch for display.
type DrawSignal struct {
	Type     MessageType `json:"type"`
	DrawTime int64       `json:"drawTime"` // server wall clock, unix ms
}

// GameResultMessage delivers the outcome of a round.
type GameResultMessage struct {
	Type   MessageType       `json:"type"`
	Result models.GameResult `json:"result"`
}

// ErrorMessage surfaces a request failure to the offending client.
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

// RTCRelay is the outbound shape of a forwarded signaling message. The
// target field is rewritten to the sender's id so the receiver knows who to
// answer.
type RTCRelay struct {
	Type           MessageType     `json:"type"`
	RoomCode       string          `json:"roomCode"`
	TargetPlayerID string          `json:"targetPlayerId"`
	Offer          json.RawMessage `json:"offer,omitempty"`
	Answer         json.RawMessage `json:"answer,omitempty"`
	Candidate      json.RawMessage `json:"candidate,omitempty"`
}

// NewGameStateUpdate builds the common state change notification.
func NewGameStateUpdate(state models.DuelState) GameStateUpdate {
	return GameStateUpdate{Type: TypeGameStateUpdate, State: state}
}

// NewError builds an ERROR message.
func NewError(code, message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Code: code, Message: message}
}
