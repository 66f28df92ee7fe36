// internal/models/session.go
package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// EntityTypeSession tags stored game sessions.
const EntityTypeSession = "game"

// MaxSeats is the fixed table capacity.
const MaxSeats = 4

// Seat holds one player's state within a session.
type Seat struct {
	Player         Player `json:"player"`
	Hand           []Card `json:"hand"`
	Score          int    `json:"score"`
	IsLeader       bool   `json:"isLeader"`
	IsCurrentTurn  bool   `json:"isCurrentTurn"`
	HasDrawn       bool   `json:"hasDrawn"`
	SkipPending    bool   `json:"skipPending"`
	PendingPenalty int    `json:"pendingPenalty"`
}

// Holds reports whether c is in the seat's hand.
func (s *Seat) Holds(c Card) bool {
	return slices.Contains(s.Hand, c)
}

// RemoveCard takes the first copy of c out of the hand.
func (s *Seat) RemoveCard(c Card) bool {
	i := slices.Index(s.Hand, c)
	if i < 0 {
		return false
	}
	s.Hand = slices.Delete(s.Hand, i, i+1)
	return true
}

// Session is the complete state of one game. Seat order is turn order.
type Session struct {
	ID           uuid.UUID `json:"id"`
	TurnLimit    int       `json:"turnLimit"`
	CurrentTurn  int       `json:"currentTurn"`
	Seats        []*Seat   `json:"seats"`
	Deck         []Card    `json:"deck"`
	DiscardPile  []Card    `json:"discardPile"`
	SuitOverride *Suit     `json:"suitOverride,omitempty"`
	Started      bool      `json:"started"`
	GameOver     bool      `json:"gameOver"`
	WinnerID     uuid.UUID `json:"winnerId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewSession builds an unstarted session with no seats.
func NewSession(turnLimit int, now time.Time) *Session {
	return &Session{
		ID:          uuid.New(),
		TurnLimit:   turnLimit,
		Seats:       []*Seat{},
		Deck:        []Card{},
		DiscardPile: []Card{},
		CreatedAt:   now,
	}
}

func (s *Session) EntityType() string { return EntityTypeSession }
func (s *Session) EntityID() string   { return s.ID.String() }

// ActiveCard is the top of the discard pile.
func (s *Session) ActiveCard() (Card, bool) {
	if len(s.DiscardPile) == 0 {
		return InvalidCard, false
	}
	return s.DiscardPile[len(s.DiscardPile)-1], true
}

// SeatIndex returns the position of playerID, or -1.
func (s *Session) SeatIndex(playerID uuid.UUID) int {
	return slices.IndexFunc(s.Seats, func(seat *Seat) bool {
		return seat.Player.ID == playerID
	})
}

// Seat returns the seat of playerID, or nil.
func (s *Session) Seat(playerID uuid.UUID) *Seat {
	if i := s.SeatIndex(playerID); i >= 0 {
		return s.Seats[i]
	}
	return nil
}

// Leader returns the leader's seat, or nil when nobody holds it.
func (s *Session) Leader() *Seat {
	for _, seat := range s.Seats {
		if seat.IsLeader {
			return seat
		}
	}
	return nil
}

// CardCount is the number of cards across deck, discard pile and hands.
func (s *Session) CardCount() int {
	n := len(s.Deck) + len(s.DiscardPile)
	for _, seat := range s.Seats {
		n += len(seat.Hand)
	}
	return n
}
