// internal/handlers/game.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/models"
)

type createGameRequest struct {
	PlayerID uuid.UUID `json:"playerId"`
	Turns    int       `json:"turns"`
}

type createGameResponse struct {
	GameID uuid.UUID `json:"gameId"`
}

// CreateGameHandler opens a new table for the authenticated player.
func (s *Server) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := authorize(r, req.PlayerID); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.Manager.CreateGame(r.Context(), req.PlayerID, req.Turns)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createGameResponse{GameID: sess.ID})
}

// GetGameHandler returns the public state of a game.
func (s *Server) GetGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUUID(r, "gameId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.Manager.Game(r.Context(), gameID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type validateMoveRequest struct {
	PlayerID uuid.UUID    `json:"playerId"`
	Move     *models.Card `json:"move"`
}

type validateMoveResponse struct {
	Valid bool `json:"valid"`
}

// ValidateMoveHandler lets a client check a move before submitting it. An
// invalid move answers with the reason and a 4xx status.
func (s *Server) ValidateMoveHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUUID(r, "gameId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req validateMoveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := authorize(r, req.PlayerID); err != nil {
		s.writeError(w, r, err)
		return
	}
	move := models.InvalidCard
	if req.Move != nil {
		move = *req.Move
	}

	if err := s.Manager.ValidateMove(r.Context(), gameID, req.PlayerID, move); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validateMoveResponse{Valid: true})
}

// DrawCardHandler draws the player's one card for the current turn.
func (s *Server) DrawCardHandler(w http.ResponseWriter, r *http.Request) {
	gameID, playerID, ok := s.gameAndPlayer(w, r)
	if !ok {
		return
	}
	c, err := s.Manager.DrawCard(r.Context(), gameID, playerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type broadcastMessageRequest struct {
	Message string `json:"message"`
}

// BroadcastMessageHandler relays a chat message to the player's table.
func (s *Server) BroadcastMessageHandler(w http.ResponseWriter, r *http.Request) {
	gameID, playerID, ok := s.gameAndPlayer(w, r)
	if !ok {
		return
	}
	var req broadcastMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Manager.BroadcastMessage(r.Context(), gameID, playerID, req.Message); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// gameAndPlayer parses {gameId}/{playerId} and checks the token matches the player.
func (s *Server) gameAndPlayer(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	gameID, err := pathUUID(r, "gameId")
	if err != nil {
		s.writeError(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	playerID, err := pathUUID(r, "playerId")
	if err != nil {
		s.writeError(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	if err := authorize(r, playerID); err != nil {
		s.writeError(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	return gameID, playerID, true
}
