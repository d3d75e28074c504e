package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service bundles the connection manager with its HTTP handlers
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// NewService wires the handlers around an existing connection manager.
// The manager is created first because the event handler needs it to reply.
func NewService(cm *ConnectionManager, handler Handler, provider StateProvider) *Service {
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, handler),
		stateHandler:      NewStateHandler(provider),
	}
}

// Start runs the connection manager until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting game gateway service")

	s.connectionManager.Start(ctx)

	log.Info().Msg("game gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and REST routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("game gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "game_gateway"
	stats["status"] = "running"
	return stats
}
