package game

import (
	"math/rand/v2"

	"github.com/jason-s-yu/suspense/internal/models"
)

// Dealer manages the deck and discard pile of a session.
type Dealer struct {
	rng *rand.Rand
}

func NewDealer(rng *rand.Rand) *Dealer {
	return &Dealer{rng: rng}
}

func (d *Dealer) shuffle(cards []models.Card) {
	d.rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// InitializeAndShuffle replaces the deck with a freshly shuffled canonical set.
func (d *Dealer) InitializeAndShuffle(s *models.Session) {
	s.Deck = models.CanonicalDeck()
	d.shuffle(s.Deck)
}

// ShuffleSeats randomizes turn order.
func (d *Dealer) ShuffleSeats(s *models.Session) {
	d.rng.Shuffle(len(s.Seats), func(i, j int) {
		s.Seats[i], s.Seats[j] = s.Seats[j], s.Seats[i]
	})
}

// Deal takes up to n cards off the front of the deck. A short deck is first
// refilled from the discard pile; if even that is not enough the caller gets
// what is left. An emptied deck is refilled straight away so the next draw
// finds cards.
func (d *Dealer) Deal(s *models.Session, n int) []models.Card {
	if n <= 0 {
		return nil
	}
	if len(s.Deck) < n {
		d.Recycle(s)
	}
	n = min(n, len(s.Deck))
	dealt := make([]models.Card, n)
	copy(dealt, s.Deck[:n])
	s.Deck = s.Deck[n:]

	if len(s.Deck) == 0 {
		d.Recycle(s)
	}
	return dealt
}

// Recycle moves every discard card except the active one back into the deck
// and reshuffles. It reports whether any card moved.
func (d *Dealer) Recycle(s *models.Session) bool {
	if len(s.DiscardPile) <= 1 {
		return false
	}
	top := len(s.DiscardPile) - 1
	s.Deck = append(s.Deck, s.DiscardPile[:top]...)
	s.DiscardPile = []models.Card{s.DiscardPile[top]}
	d.shuffle(s.Deck)
	return true
}
