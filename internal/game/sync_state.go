// internal/game/sync_state.go
package game

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PublicSeat is what every participant may see of a seat.
type PublicSeat struct {
	PlayerID       uuid.UUID `json:"playerId"`
	Name           string    `json:"name"`
	IsBot          bool      `json:"isBot"`
	HandSize       int       `json:"handSize"`
	Score          int       `json:"score"`
	IsLeader       bool      `json:"isLeader"`
	IsCurrentTurn  bool      `json:"isCurrentTurn"`
	HasDrawn       bool      `json:"hasDrawn"`
	SkipPending    bool      `json:"skipPending"`
	PendingPenalty int       `json:"pendingPenalty"`
}

// PublicState is the hand-redacted view of a session.
type PublicState struct {
	GameID       uuid.UUID     `json:"gameId"`
	TurnLimit    int           `json:"turnLimit"`
	CurrentTurn  int           `json:"currentTurn"`
	Started      bool          `json:"started"`
	GameOver     bool          `json:"gameOver"`
	WinnerID     *uuid.UUID    `json:"winnerId,omitempty"`
	DeckSize     int           `json:"deckSize"`
	DiscardPile  []models.Card `json:"discardPile"`
	ActiveCard   *models.Card  `json:"activeCard,omitempty"`
	SuitOverride *models.Suit  `json:"suitOverride,omitempty"`
	Seats        []PublicSeat  `json:"seats"`
}

// PrivateHand is sent only to the seat's owner.
type PrivateHand struct {
	GameID   uuid.UUID     `json:"gameId"`
	PlayerID uuid.UUID     `json:"playerId"`
	Hand     []models.Card `json:"hand"`
}

// PublicView projects s into a PublicState. The result shares no memory with s.
func PublicView(s *models.Session) PublicState {
	ps := PublicState{
		GameID:      s.ID,
		TurnLimit:   s.TurnLimit,
		CurrentTurn: s.CurrentTurn,
		Started:     s.Started,
		GameOver:    s.GameOver,
		DeckSize:    len(s.Deck),
		DiscardPile: slices.Clone(s.DiscardPile),
		Seats:       make([]PublicSeat, 0, len(s.Seats)),
	}
	if ps.DiscardPile == nil {
		ps.DiscardPile = []models.Card{}
	}
	if active, ok := s.ActiveCard(); ok {
		ps.ActiveCard = &active
	}
	if s.SuitOverride != nil {
		suit := *s.SuitOverride
		ps.SuitOverride = &suit
	}
	if s.GameOver && s.WinnerID != uuid.Nil {
		winner := s.WinnerID
		ps.WinnerID = &winner
	}
	for _, seat := range s.Seats {
		ps.Seats = append(ps.Seats, PublicSeat{
			PlayerID:       seat.Player.ID,
			Name:           seat.Player.Name,
			IsBot:          seat.Player.IsBot,
			HandSize:       len(seat.Hand),
			Score:          seat.Score,
			IsLeader:       seat.IsLeader,
			IsCurrentTurn:  seat.IsCurrentTurn,
			HasDrawn:       seat.HasDrawn,
			SkipPending:    seat.SkipPending,
			PendingPenalty: seat.PendingPenalty,
		})
	}
	return ps
}

// PrivateView copies the seat's hand for its owner.
func PrivateView(s *models.Session, seat *models.Seat) PrivateHand {
	hand := slices.Clone(seat.Hand)
	if hand == nil {
		hand = []models.Card{}
	}
	return PrivateHand{GameID: s.ID, PlayerID: seat.Player.ID, Hand: hand}
}

// Notifier fans session updates out over a Channel. Delivery failures are
// logged and otherwise ignored; a client that misses an update gets the next one.
type Notifier struct {
	channel Channel
	logger  logrus.FieldLogger
}

func NewNotifier(channel Channel, logger logrus.FieldLogger) *Notifier {
	return &Notifier{channel: channel, logger: logger}
}

// GroupName is the channel group of a session.
func GroupName(gameID uuid.UUID) string {
	return gameID.String()
}

type handDelivery struct {
	connID string
	hand   PrivateHand
}

// PublishState sends the public view to the whole group and each human's
// hand to that human alone. The views are taken before any send starts.
func (n *Notifier) PublishState(ctx context.Context, s *models.Session) {
	public := PublicView(s)
	var hands []handDelivery
	for _, seat := range s.Seats {
		if seat.Player.IsBot || seat.Player.ConnectionID == "" {
			continue
		}
		hands = append(hands, handDelivery{connID: seat.Player.ConnectionID, hand: PrivateView(s, seat)})
	}

	if err := n.channel.NotifyGroup(ctx, GroupName(s.ID), EventGameUpdated, public); err != nil {
		n.logger.WithError(err).Warn("failed to broadcast game state")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range hands {
		g.Go(func() error {
			return n.channel.NotifyOne(gctx, d.connID, EventPlayerDataUpdated, d.hand)
		})
	}
	if err := g.Wait(); err != nil {
		n.logger.WithError(err).Warn("failed to deliver private hand")
	}
}

// Announce broadcasts a message from the game to the whole group.
func (n *Notifier) Announce(ctx context.Context, gameID uuid.UUID, message string) {
	n.Broadcast(ctx, gameID, AnnouncerName, message)
}

// Broadcast sends a chat message from sender to the whole group.
func (n *Notifier) Broadcast(ctx context.Context, gameID uuid.UUID, sender, message string) {
	msg := ChatMessage{Sender: sender, Message: message}
	if err := n.channel.NotifyGroup(ctx, GroupName(gameID), EventBroadcastMessage, msg); err != nil {
		n.logger.WithError(err).Warn("failed to broadcast message")
	}
}

// Whisper sends a message from the game to a single connection.
func (n *Notifier) Whisper(ctx context.Context, connID, message string) {
	if connID == "" {
		return
	}
	msg := ChatMessage{Sender: AnnouncerName, Message: message}
	if err := n.channel.NotifyOne(ctx, connID, EventPrivateMessage, msg); err != nil {
		n.logger.WithError(err).Warn("failed to deliver private message")
	}
}

// PlayerJoined tells the group who just took a seat.
func (n *Notifier) PlayerJoined(ctx context.Context, gameID uuid.UUID, p models.Player) {
	p.ConnectionID = ""
	if err := n.channel.NotifyGroup(ctx, GroupName(gameID), EventPlayerJoined, p); err != nil {
		n.logger.WithError(err).Warn("failed to broadcast player join")
	}
}

// GameOver tells the group the final standings.
func (n *Notifier) GameOver(ctx context.Context, s *models.Session) {
	if err := n.channel.NotifyGroup(ctx, GroupName(s.ID), EventGameOver, PublicView(s)); err != nil {
		n.logger.WithError(err).Warn("failed to broadcast game over")
	}
}
