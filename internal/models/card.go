// internal/models/card.go
package models

import "strconv"

// Suit is encoded numerically on the wire. Pass and Invalid are control values only.
type Suit int

const (
	SuitPass    Suit = -2
	SuitInvalid Suit = -1
	Diamonds    Suit = 1
	Clubs       Suit = 2
	Hearts      Suit = 3
	Spades      Suit = 4
)

// Suits lists the four playable suits in canonical order.
var Suits = []Suit{Diamonds, Clubs, Hearts, Spades}

// Valid reports whether s is one of the four playable suits.
func (s Suit) Valid() bool {
	return s >= Diamonds && s <= Spades
}

func (s Suit) String() string {
	switch s {
	case Diamonds:
		return "D"
	case Clubs:
		return "C"
	case Hearts:
		return "H"
	case Spades:
		return "S"
	case SuitPass:
		return "pass"
	default:
		return "invalid"
	}
}

// Rank runs from Ace (1) to King (13), plus the two sentinel values.
type Rank int

const (
	RankPass    Rank = -2
	RankInvalid Rank = -1
	Ace         Rank = 1
	Two         Rank = 2
	Three       Rank = 3
	Four        Rank = 4
	Five        Rank = 5
	Six         Rank = 6
	Seven       Rank = 7
	Eight       Rank = 8
	Nine        Rank = 9
	Ten         Rank = 10
	Jack        Rank = 11
	Queen       Rank = 12
	King        Rank = 13
)

func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case RankPass:
		return "pass"
	case RankInvalid:
		return "invalid"
	default:
		return strconv.Itoa(int(r))
	}
}

// Card is a plain value; two cards are the same card when suit and rank match.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

var (
	// PassCard signals that a player ends the turn without placing a card.
	PassCard = Card{Suit: SuitPass, Rank: RankPass}
	// InvalidCard signals a rejected or missing move.
	InvalidCard = Card{Suit: SuitInvalid, Rank: RankInvalid}
)

func (c Card) IsPass() bool    { return c == PassCard }
func (c Card) IsInvalid() bool { return c == InvalidCard }

// IsSentinel reports whether c is a control value rather than a playable card.
func (c Card) IsSentinel() bool {
	return c.IsPass() || c.IsInvalid()
}

func (c Card) String() string {
	if c.IsSentinel() {
		return c.Rank.String()
	}
	return c.Rank.String() + c.Suit.String()
}

// CanonicalDeck returns the 52 playable cards, suit by suit, in rank order.
func CanonicalDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, s := range Suits {
		for r := Ace; r <= King; r++ {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}
