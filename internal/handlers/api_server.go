// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/suspense/internal/game"
	"github.com/jason-s-yu/suspense/internal/hub"
	"github.com/jason-s-yu/suspense/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Server holds what the HTTP and WebSocket handlers need.
type Server struct {
	Manager *game.Manager
	Hub     *hub.Hub
	logger  logrus.FieldLogger
}

func NewServer(manager *game.Manager, h *hub.Hub, logger logrus.FieldLogger) *Server {
	return &Server{Manager: manager, Hub: h, logger: logger}
}

// Routes builds the mux for the whole API, wrapped in request logging.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// player endpoints
	mux.HandleFunc("POST /api/v1/player/new", s.CreatePlayerHandler)

	// game endpoints
	mux.HandleFunc("POST /api/v1/game/new", s.CreateGameHandler)
	mux.HandleFunc("GET /api/v1/game/{gameId}", s.GetGameHandler)
	mux.HandleFunc("POST /api/v1/game/{gameId}/validate-move", s.ValidateMoveHandler)
	mux.HandleFunc("GET /api/v1/game/{gameId}/{playerId}/draw-card", s.DrawCardHandler)
	mux.HandleFunc("POST /api/v1/game/{gameId}/{playerId}/broadcast-message", s.BroadcastMessageHandler)

	// game websocket
	mux.HandleFunc("GET /game/ws", s.GameWSHandler)

	return middleware.LogMiddleware(s.logger)(mux)
}
