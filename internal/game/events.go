package game

import (
	"context"
	"encoding/json"

	"github.com/jason-s-yu/suspense/internal/models"
)

// Event names pushed to clients.
const (
	EventPlayerJoined      = "player_joined"
	EventGameUpdated       = "game_updated"
	EventPlayerDataUpdated = "player_data_updated"
	EventBroadcastMessage  = "broadcast_message"
	EventPrivateMessage    = "private_message"
	EventGameOver          = "game_over"
)

// Requests sent to a human whose answer the engine waits for.
const (
	RequestPlayTurn     = "play_turn"
	RequestChangeSuit   = "change_suit"
	RequestCounterSeven = "counter_seven"
)

// AnnouncerName is the sender shown on messages the game itself emits.
const AnnouncerName = "Game"

// Channel pushes events to connected clients and asks single clients for
// answers. RequestOne blocks until the client answers or ctx is done, in
// which case it returns context.Cause(ctx).
type Channel interface {
	AddToGroup(connID, group string)
	NotifyGroup(ctx context.Context, group, event string, payload any) error
	NotifyOne(ctx context.Context, connID, event string, payload any) error
	RequestOne(ctx context.Context, connID, event string, payload any) (json.RawMessage, error)
}

// ChatMessage is the payload of broadcast and private messages.
type ChatMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// TurnRequest is the payload sent with every human request.
type TurnRequest struct {
	GameID         string `json:"gameId"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	HasDrawn       bool   `json:"hasDrawn"`
	PendingPenalty int    `json:"pendingPenalty,omitempty"`
}

// MoveResponse is what a human sends back for play_turn and counter_seven.
type MoveResponse struct {
	Card *models.Card `json:"card"`
}

// SuitResponse is what a human sends back for change_suit.
type SuitResponse struct {
	Suit *models.Suit `json:"suit"`
}
