package game

import (
	"context"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/coder/quartz"
	"github.com/jason-s-yu/suspense/internal/models"
)

// BotThinkDelay is how long a bot pauses before answering.
const BotThinkDelay = 2 * time.Second

// DrawFunc draws one card for the deciding seat. ok is false when no card was left.
type DrawFunc func(ctx context.Context) (card models.Card, ok bool, err error)

// BotView is everything a bot may look at when choosing a move.
type BotView struct {
	Hand         []models.Card
	DiscardPile  []models.Card
	SuitOverride *models.Suit
	HasDrawn     bool
	NextHandSize int
	HeadsUp      bool
}

// Decision is a bot's chosen card, with the suit to call when it is an Ace.
type Decision struct {
	Card models.Card
	Suit *models.Suit
}

// Bot plays by a fixed heuristic. Every decision it returns is legal.
type Bot struct {
	rng   *rand.Rand
	clock quartz.Clock
	delay time.Duration
}

func NewBot(rng *rand.Rand, clock quartz.Clock) *Bot {
	return &Bot{rng: rng, clock: clock, delay: BotThinkDelay}
}

// botTurn is the per-decision working state. hand is a private copy that
// tracks cards drawn through the callback.
type botTurn struct {
	*Bot
	hand     []models.Card
	active   models.Card
	override *models.Suit
	hasDrawn bool
	played   []models.Card
	draw     DrawFunc
}

// Decide waits out the thinking delay and then picks a move for v.
func (b *Bot) Decide(ctx context.Context, v BotView, draw DrawFunc) (Decision, error) {
	if err := b.think(ctx); err != nil {
		return Decision{}, err
	}

	active := models.InvalidCard
	if len(v.DiscardPile) > 0 {
		active = v.DiscardPile[len(v.DiscardPile)-1]
	}
	t := &botTurn{
		Bot:      b,
		hand:     slices.Clone(v.Hand),
		active:   active,
		override: v.SuitOverride,
		hasDrawn: v.HasDrawn,
		played:   v.DiscardPile,
		draw:     draw,
	}

	if len(t.hand) == 1 && t.legal(t.hand[0]) {
		return t.play(t.hand[0]), nil
	}

	if active.Rank == models.Seven {
		d, ok, err := t.counterSeven(ctx)
		if err != nil || ok {
			return d, err
		}
	}

	if d, ok := t.offensive(models.Nine, !v.HeadsUp && v.NextHandSize < 2); ok {
		return d, nil
	}
	if d, ok := t.offensive(models.Eight, false); ok {
		return d, nil
	}
	return t.general(ctx)
}

func (b *Bot) think(ctx context.Context) error {
	if b.delay <= 0 {
		return ctx.Err()
	}
	timer := b.clock.NewTimer(b.delay, "bot", "think")
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *botTurn) legal(c models.Card) bool {
	return IsLegal(t.active, t.override, t.hasDrawn, c)
}

func (t *botTurn) governing() models.Suit {
	return GoverningSuit(t.active, t.override)
}

// drawOne pulls a card into the working hand.
func (t *botTurn) drawOne(ctx context.Context) error {
	c, ok, err := t.draw(ctx)
	if err != nil {
		return err
	}
	t.hasDrawn = true
	if ok {
		t.hand = append(t.hand, c)
	}
	return nil
}

// play wraps c in a Decision, calling the most-held suit for an Ace.
func (t *botTurn) play(c models.Card) Decision {
	d := Decision{Card: c}
	if c.Rank == models.Ace {
		rest := slices.Clone(t.hand)
		if i := slices.Index(rest, c); i >= 0 {
			rest = slices.Delete(rest, i, i+1)
		}
		s := mostHeldSuit(rest, c.Suit)
		d.Suit = &s
	}
	return d
}

func (t *botTurn) counterSeven(ctx context.Context) (Decision, bool, error) {
	for {
		own := t.matching(func(c models.Card) bool { return c.Rank == models.Seven })
		if len(own) > 0 {
			played := countRank(t.played, models.Seven)
			chance := 100
			if unseen := 4 - played; unseen > 0 {
				chance = len(own) * 100 / unseen
			}
			if t.rng.IntN(100) < chance {
				return t.play(highestCommonSuit(own, t.hand)), true, nil
			}
		}
		if c, ok := t.highestOfSuit(t.active.Suit); ok {
			return t.play(c), true, nil
		}
		if t.hasDrawn {
			return Decision{}, false, nil
		}
		if err := t.drawOne(ctx); err != nil {
			return Decision{}, false, err
		}
	}
}

// offensive throws a Nine or Eight when one follows the active card. A
// forced throw skips the coin flip.
func (t *botTurn) offensive(rank models.Rank, forced bool) (Decision, bool) {
	gov := t.governing()
	cands := t.matching(func(c models.Card) bool {
		return c.Rank == rank && (t.active.Rank == rank || c.Suit == gov)
	})
	if len(cands) == 0 {
		return Decision{}, false
	}
	if !forced && t.rng.IntN(2) == 0 {
		return Decision{}, false
	}
	return t.play(highestCommonSuit(cands, t.hand)), true
}

func (t *botTurn) general(ctx context.Context) (Decision, error) {
	for {
		if c, ok := t.highestOfSuit(t.governing()); ok {
			return t.play(c), nil
		}
		if same := t.matching(func(c models.Card) bool { return c.Rank == t.active.Rank }); len(same) > 0 {
			return t.play(highestCommonSuit(same, t.hand)), nil
		}
		if aces := t.matching(func(c models.Card) bool { return c.Rank == models.Ace }); len(aces) > 0 {
			return t.play(aces[0]), nil
		}
		if t.hasDrawn {
			return Decision{Card: models.PassCard}, nil
		}
		if err := t.drawOne(ctx); err != nil {
			return Decision{}, err
		}
	}
}

// matching returns the legal cards in hand that satisfy keep.
func (t *botTurn) matching(keep func(models.Card) bool) []models.Card {
	var out []models.Card
	for _, c := range t.hand {
		if keep(c) && t.legal(c) {
			out = append(out, c)
		}
	}
	return out
}

// highestOfSuit returns the highest legal card of suit s.
func (t *botTurn) highestOfSuit(s models.Suit) (models.Card, bool) {
	best, found := models.InvalidCard, false
	for _, c := range t.matching(func(c models.Card) bool { return c.Suit == s }) {
		if !found || c.Rank > best.Rank {
			best, found = c, true
		}
	}
	return best, found
}

// highestCommonSuit picks the candidate whose suit is most plentiful in the
// rest of the hand, so the bot keeps something to follow with.
func highestCommonSuit(cands, hand []models.Card) models.Card {
	counts := make(map[models.Suit]int)
	for _, c := range hand {
		if !slices.Contains(cands, c) {
			counts[c.Suit]++
		}
	}
	pick, best := cands[0], 0
	for _, c := range cands {
		if n := counts[c.Suit]; n > best {
			pick, best = c, n
		}
	}
	return pick
}

// mostHeldSuit is the suit with the most cards in hand, fallback when the hand is empty.
func mostHeldSuit(hand []models.Card, fallback models.Suit) models.Suit {
	counts := make(map[models.Suit]int)
	for _, c := range hand {
		if c.Suit.Valid() {
			counts[c.Suit]++
		}
	}
	pick, best := fallback, 0
	for _, s := range models.Suits {
		if counts[s] > best {
			pick, best = s, counts[s]
		}
	}
	return pick
}

func countRank(cards []models.Card, r models.Rank) int {
	n := 0
	for _, c := range cards {
		if c.Rank == r {
			n++
		}
	}
	return n
}
