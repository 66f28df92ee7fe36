// internal/game/rules.go
package game

import "github.com/jason-s-yu/suspense/internal/models"

// GoverningSuit is the suit the next card must follow: the chosen suit while
// an Ace is on top, otherwise the active card's own suit. An Ace with no
// chosen suit (the opening card) governs with its own suit.
func GoverningSuit(active models.Card, override *models.Suit) models.Suit {
	if active.Rank == models.Ace && override != nil {
		return *override
	}
	return active.Suit
}

// IsLegal decides whether move may be played on active. It does not check
// that the player actually holds the card.
func IsLegal(active models.Card, override *models.Suit, hasDrawn bool, move models.Card) bool {
	if active.Rank == models.Ace && move.Rank == models.Ace {
		return false
	}
	if move.IsPass() {
		return hasDrawn
	}
	if move.IsInvalid() {
		return false
	}
	return move.Rank == active.Rank ||
		move.Rank == models.Ace ||
		move.Suit == GoverningSuit(active, override)
}

// CardPoints is the value a card left in hand adds to the holder's score.
func CardPoints(c models.Card) int {
	switch {
	case c.IsSentinel():
		return 0
	case c.Rank == models.Ace:
		return 11
	case c.Rank >= models.Jack:
		return 10
	default:
		return int(c.Rank)
	}
}

// HandPoints sums CardPoints over a hand.
func HandPoints(hand []models.Card) int {
	total := 0
	for _, c := range hand {
		total += CardPoints(c)
	}
	return total
}
