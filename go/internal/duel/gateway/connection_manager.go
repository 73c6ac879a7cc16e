// Package gateway is the websocket transport for duel rooms: it owns the
// live connections, fans room broadcasts out to them and routes inbound
// client messages to the orchestrator. Game truth never lives here.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// RoomResolver supplies the current member list of a room. The session
// registry implements it.
type RoomResolver interface {
	PlayerIDs(code string) []string
}

// MessageHandler consumes inbound transport events. The router implements
// it.
type MessageHandler interface {
	HandleMessage(playerID string, data []byte)
	HandleDisconnect(playerID string)
}

// ConnectionManager tracks live websocket connections by player id and
// processes the broadcast queue.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[string]*Connection // player id -> connection

	resolver RoomResolver
	handler  MessageHandler
	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcastMessage
}

// Connection represents one player's websocket.
type Connection struct {
	ID       string // connection uuid, for logs
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte
	done     chan struct{} // closed on unregister; guards sends on Send
	Manager  *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds websocket tuning.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// broadcastMessage is one queued fan-out. A non-empty PlayerID makes it a
// single-recipient delivery; a non-empty Exclude skips that member.
type broadcastMessage struct {
	RoomCode string
	PlayerID string
	Exclude  string
	Data     []byte
}

// DefaultConnectionConfig returns the default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a manager over the given room resolver.
func NewConnectionManager(config ConnectionConfig, resolver RoomResolver) *ConnectionManager {
	return &ConnectionManager{
		conns:    make(map[string]*Connection),
		resolver: resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// SetHandler wires the inbound message handler. Must be called before the
// first upgrade.
func (cm *ConnectionManager) SetHandler(handler MessageHandler) {
	cm.handler = handler
}

// Start processes the broadcast queue until ctx is done. Queue order is
// delivery order, so messages enqueued under a room's event lock reach
// clients in event order.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.deliver(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a websocket, assigns the
// player a fresh id and starts the connection pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		done:        make(chan struct{}),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("player_id", connection.PlayerID).
		Msg("player connected")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conns[conn.PlayerID] = conn
}

// unregisterConnection removes a connection. It is safe to call twice; only
// the first call closes done.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if current, ok := cm.conns[conn.PlayerID]; ok && current == conn {
		delete(cm.conns, conn.PlayerID)
		close(conn.done)
		log.Info().
			Str("connection_id", conn.ID).
			Str("player_id", conn.PlayerID).
			Msg("player disconnected")
	}
}

// Broadcast queues a message for every member of the room except the
// excluded player. It implements the orchestrator's Broadcaster.
func (cm *ConnectionManager) Broadcast(roomCode string, message any, excludePlayerID string) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("room_code", roomCode).Msg("failed to marshal broadcast")
		return
	}
	select {
	case cm.broadcastCh <- broadcastMessage{RoomCode: roomCode, Exclude: excludePlayerID, Data: data}:
	default:
		log.Warn().Str("room_code", roomCode).Msg("broadcast channel full, dropping message")
	}
}

// SendToPlayer queues a message for a single player.
func (cm *ConnectionManager) SendToPlayer(playerID string, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("player_id", playerID).Msg("failed to marshal message")
		return
	}
	select {
	case cm.broadcastCh <- broadcastMessage{PlayerID: playerID, Data: data}:
	default:
		log.Warn().Str("player_id", playerID).Msg("broadcast channel full, dropping message")
	}
}

// deliver resolves recipients and writes to their send buffers. Unknown or
// closed endpoints are skipped silently.
func (cm *ConnectionManager) deliver(message broadcastMessage) {
	var recipients []string
	if message.PlayerID != "" {
		recipients = []string{message.PlayerID}
	} else {
		recipients = cm.resolver.PlayerIDs(message.RoomCode)
	}

	cm.mu.RLock()
	var targets []*Connection
	for _, id := range recipients {
		if message.Exclude != "" && id == message.Exclude {
			continue
		}
		if conn, ok := cm.conns[id]; ok {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.Send <- message.Data:
		case <-conn.done:
		default:
			// Connection is slow/dead, close it.
			log.Warn().
				Str("connection_id", conn.ID).
				Str("player_id", conn.PlayerID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}
}

// ConnectionCount returns the number of live connections.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

// writePump sends queued messages and pings on one goroutine per
// connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump reads client messages and hands them to the router. A read error
// ends the connection and counts as the player leaving.
func (c *Connection) readPump() {
	defer func() {
		if c.Manager.handler != nil {
			c.Manager.handler.HandleDisconnect(c.PlayerID)
		}
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.Manager.handler != nil {
			c.Manager.handler.HandleMessage(c.PlayerID, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
