// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/game"
	"github.com/jason-s-yu/suspense/internal/hub"
	"github.com/jason-s-yu/suspense/internal/middleware"
	"github.com/jason-s-yu/suspense/internal/models"
	"github.com/sirupsen/logrus"
)

// Message types a client may send on the game socket.
const (
	msgJoinGame  = "join_game"
	msgStartGame = "start_game"
	msgResponse  = "response"
	msgPing      = "ping"
)

// Message types only the socket handler sends. Game events come from the engine.
const (
	msgGameJoined  = "game_joined"
	msgGameStarted = "game_started"
	msgPong        = "pong"
	msgError       = "error"
)

// joinGamePayload seats the connected player, or the bot named by PlayerID
// when the connected player leads the game.
type joinGamePayload struct {
	GameID   uuid.UUID `json:"gameId"`
	PlayerID uuid.UUID `json:"playerId"`
	IsLeader bool      `json:"isLeader"`
}

type startGamePayload struct {
	GameID uuid.UUID `json:"gameId"`
}

type wsErrorPayload struct {
	Message string `json:"message"`
}

// GameWSHandler upgrades to a WebSocket on the "game" subprotocol. The
// connection is registered with the hub so the engine can reach it, and it
// carries joins, starts and the answers to move requests.
func (s *Server) GameWSHandler(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"game"},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("websocket accept failed")
		return
	}
	defer c.CloseNow()

	if c.Subprotocol() != "game" {
		c.Close(BadSubprotocolError, "client must use the game subprotocol")
		return
	}

	playerID, err := authenticate(r)
	if err != nil {
		c.Close(InvalidAuthTokenError, "invalid auth token")
		return
	}
	p, err := s.Manager.Player(r.Context(), playerID)
	if err != nil {
		c.Close(InvalidPlayerIDError, "unknown player")
		return
	}

	connID := s.Hub.Register(c)
	defer s.Hub.Unregister(connID)
	middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, playerID.String())

	err = s.readGameMessages(r.Context(), c, connID, p)
	middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, playerID.String(), err)
	if err == nil {
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readGameMessages handles frames until the client goes away. A normal
// closure returns nil.
func (s *Server) readGameMessages(ctx context.Context, c *websocket.Conn, connID string, p *models.Player) error {
	log := s.logger.WithFields(logrus.Fields{"player": p.ID, "conn": connID})
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			log.Debug("ignoring binary frame")
			continue
		}

		var env hub.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.sendError(ctx, connID, "invalid JSON format")
			continue
		}
		log.WithField("type", env.Type).Trace("websocket message")

		switch env.Type {
		case msgJoinGame:
			var req joinGamePayload
			if err := json.Unmarshal(env.Payload, &req); err != nil {
				s.sendError(ctx, connID, "invalid join_game payload")
				continue
			}
			var state game.PublicState
			if req.PlayerID == uuid.Nil || req.PlayerID == p.ID {
				state, err = s.Manager.JoinGame(ctx, req.GameID, p.ID, req.IsLeader, connID)
			} else {
				state, err = s.Manager.SeatBot(ctx, req.GameID, p.ID, req.PlayerID)
			}
			if err != nil {
				s.sendError(ctx, connID, err.Error())
				continue
			}
			s.reply(ctx, connID, msgGameJoined, state)

		case msgStartGame:
			var req startGamePayload
			if err := json.Unmarshal(env.Payload, &req); err != nil {
				s.sendError(ctx, connID, "invalid start_game payload")
				continue
			}
			if _, err := s.Manager.StartGame(ctx, req.GameID, p.ID); err != nil {
				s.sendError(ctx, connID, err.Error())
				continue
			}
			s.reply(ctx, connID, msgGameStarted, req)

		case msgResponse:
			if !s.Hub.Resolve(connID, env.RequestID, env.Payload) {
				log.WithField("request_id", env.RequestID).Debug("dropping answer to unknown request")
			}

		case msgPing:
			s.reply(ctx, connID, msgPong, nil)

		default:
			s.sendError(ctx, connID, fmt.Sprintf("unknown message type: %s", env.Type))
		}
	}
}

func (s *Server) reply(ctx context.Context, connID, event string, payload any) {
	if err := s.Hub.NotifyOne(ctx, connID, event, payload); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"conn": connID, "event": event}).Warn("failed to reply")
	}
}

func (s *Server) sendError(ctx context.Context, connID, message string) {
	s.reply(ctx, connID, msgError, wsErrorPayload{Message: message})
}
