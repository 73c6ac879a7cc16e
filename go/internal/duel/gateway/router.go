package gateway

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/quickdrawgg/duels/go/internal/duel/protocol"
	"github.com/quickdrawgg/duels/go/internal/models"
	"github.com/quickdrawgg/duels/go/internal/room"
)

// Sender is the outbound half of the transport the router needs.
type Sender interface {
	Broadcast(roomCode string, message any, excludePlayerID string)
	SendToPlayer(playerID string, message any)
}

// GameHandler is what the router needs from the orchestrator.
type GameHandler interface {
	HandleCreateRoom(playerID, playerName string) *models.Room
	HandleJoinRoom(code, playerID, playerName string) (*models.Room, error)
	HandlePlayerReady(code, playerID string)
	HandleHandReady(code, playerID string, isReady bool)
	HandlePlayerShot(code, playerID string, reactionTimeMs int64)
	HandleLeave(playerID string)
}

// Router dispatches inbound client messages to the game engine and the
// signaling relay. Malformed messages are logged and dropped; they never
// take a session down.
type Router struct {
	game      GameHandler
	sender    Sender
	signaling *SignalingRelay
}

// NewRouter creates a router over the given game handler and sender.
func NewRouter(game GameHandler, sender Sender) *Router {
	return &Router{
		game:      game,
		sender:    sender,
		signaling: NewSignalingRelay(sender),
	}
}

// HandleMessage parses and dispatches one inbound frame.
func (r *Router) HandleMessage(playerID string, data []byte) {
	var msg protocol.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("player_id", playerID).Msg("invalid client message")
		return
	}

	log.Debug().Str("player_id", playerID).Str("type", string(msg.Type)).Msg("client message")

	switch msg.Type {
	case protocol.TypeCreateRoom:
		rm := r.game.HandleCreateRoom(playerID, msg.PlayerName)
		r.sender.SendToPlayer(playerID, protocol.RoomCreated{
			Type:     protocol.TypeRoomCreated,
			RoomCode: rm.Code,
			PlayerID: playerID,
		})

	case protocol.TypeJoinRoom:
		code := strings.ToUpper(msg.RoomCode)
		rm, err := r.game.HandleJoinRoom(code, playerID, msg.PlayerName)
		if err != nil {
			r.sender.SendToPlayer(playerID, protocol.NewError(
				protocol.ErrCodeRoomNotFound,
				"Room not found or full",
			))
			if !isCapacityError(err) {
				log.Warn().Err(err).Str("room_code", code).Msg("join failed")
			}
			return
		}
		r.sender.SendToPlayer(playerID, protocol.RoomJoined{
			Type:     protocol.TypeRoomJoined,
			RoomCode: rm.Code,
			PlayerID: playerID,
			Players:  rm.Players,
		})
		if joined := rm.PlayerByID(playerID); joined != nil {
			r.sender.Broadcast(rm.Code, protocol.PlayerJoined{
				Type:   protocol.TypePlayerJoined,
				Player: joined,
			}, playerID)
		}

	case protocol.TypePlayerReady:
		r.game.HandlePlayerReady(strings.ToUpper(msg.RoomCode), playerID)

	case protocol.TypeHandReady:
		r.game.HandleHandReady(strings.ToUpper(msg.RoomCode), playerID, msg.IsReady)

	case protocol.TypePlayerShot:
		r.game.HandlePlayerShot(strings.ToUpper(msg.RoomCode), playerID, msg.ReactionTime)

	case protocol.TypeLeaveRoom:
		r.game.HandleLeave(playerID)

	case protocol.TypeRTCOffer, protocol.TypeRTCAnswer, protocol.TypeRTCIceCandidate:
		r.signaling.Relay(playerID, msg)

	default:
		log.Warn().Str("player_id", playerID).Str("type", string(msg.Type)).Msg("unknown message type")
	}
}

// HandleDisconnect treats a dropped transport like an explicit leave.
func (r *Router) HandleDisconnect(playerID string) {
	r.game.HandleLeave(playerID)
}

func isCapacityError(err error) bool {
	return errors.Is(err, room.ErrRoomNotFound) || errors.Is(err, room.ErrRoomFull)
}
