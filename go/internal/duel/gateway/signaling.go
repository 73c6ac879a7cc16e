package gateway

import (
	"github.com/rs/zerolog/log"

	"github.com/quickdrawgg/duels/go/internal/duel/protocol"
)

// SignalingRelay forwards WebRTC offer/answer/candidate messages between
// the two peers of a room. Payloads are opaque: the relay rewrites only the
// target field, replacing it with the sender's id so the receiver knows who
// to respond to, and never inspects the SDP or candidate contents. Nothing
// here touches game state.
type SignalingRelay struct {
	sender Sender
}

// NewSignalingRelay creates a relay over the given sender.
func NewSignalingRelay(sender Sender) *SignalingRelay {
	return &SignalingRelay{sender: sender}
}

// Relay forwards one signaling message to its target player.
func (s *SignalingRelay) Relay(senderID string, msg protocol.ClientMessage) {
	if msg.TargetPlayerID == "" {
		log.Warn().Str("player_id", senderID).Str("type", string(msg.Type)).Msg("signaling message without target")
		return
	}

	s.sender.SendToPlayer(msg.TargetPlayerID, protocol.RTCRelay{
		Type:           msg.Type,
		RoomCode:       msg.RoomCode,
		TargetPlayerID: senderID,
		Offer:          msg.Offer,
		Answer:         msg.Answer,
		Candidate:      msg.Candidate,
	})
}
