package gateway

import (
	"context"
	"net/http"
)

// Service ties the gateway together: connection manager, websocket handler
// and message router.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	router            *Router
}

// NewService creates a gateway service over the given room resolver. The
// game handler is attached separately because the orchestrator needs this
// service's broadcaster first.
func NewService(config ConnectionConfig, resolver RoomResolver) *Service {
	cm := NewConnectionManager(config, resolver)
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
	}
}

// AttachGame wires the inbound message path. Must be called before the
// HTTP server starts accepting upgrades.
func (s *Service) AttachGame(game GameHandler) {
	s.router = NewRouter(game, s.connectionManager)
	s.connectionManager.SetHandler(s.router)
}

// Broadcaster exposes the outbound fan-out for the orchestrator.
func (s *Service) Broadcaster() *ConnectionManager {
	return s.connectionManager
}

// Start runs the broadcast queue until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.connectionManager.Start(ctx)
}

// RegisterRoutes registers the websocket endpoints on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
}

// ConnectionCount returns the number of live connections.
func (s *Service) ConnectionCount() int {
	return s.connectionManager.ConnectionCount()
}
