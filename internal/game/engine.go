// internal/game/engine.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// HandSize is the number of cards dealt to each seat per round.
	HandSize = 7
	// DefaultTurnCountdown is the time a human sees on the client clock.
	DefaultTurnCountdown = 60 * time.Second
	// DefaultTurnBuffer is extra server-side grace on top of the countdown.
	DefaultTurnBuffer = 10 * time.Second
	// openingPenalty is what the first seat owes when a Seven is flipped.
	openingPenalty = 2
	// actionPublishTimeout bounds each push of the action log.
	actionPublishTimeout = 2 * time.Second
)

// SessionSaver persists the session after every mutation.
type SessionSaver interface {
	Save(ctx context.Context, s *models.Session) error
}

// ActionSink receives the action log of a game.
type ActionSink interface {
	PublishAction(ctx context.Context, action models.GameAction) error
}

// EngineConfig wires an Engine to its collaborators.
type EngineConfig struct {
	Store       SessionSaver
	Channel     Channel
	Clock       quartz.Clock
	Rand        *rand.Rand
	TurnTimeout time.Duration
	Logger      logrus.FieldLogger
	Actions     ActionSink
	// OnGameEnd runs once Run is over, with the final view and the error that ended it, if any.
	OnGameEnd func(final PublicState, err error)
	// InstantBots skips the bot thinking pause, for offline simulation.
	InstantBots bool
}

type turnOutcome int

const (
	outcomeAdvance turnOutcome = iota // next seat in order acts
	outcomeReplay                     // same seat acts again (Eight)
)

// Engine runs a single session from deal to game over. It is the only
// writer of the session once Run has been called.
type Engine struct {
	mu      sync.Mutex
	session *models.Session

	dealer   *Dealer
	human    MoveProvider
	bots     MoveProvider
	store    SessionSaver
	notifier *Notifier
	clock    quartz.Clock
	logger   logrus.FieldLogger

	actions     ActionSink
	actionIndex int
	onGameEnd   func(PublicState, error)

	done chan struct{}
	err  error
}

func NewEngine(s *models.Session, cfg EngineConfig) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultTurnCountdown + DefaultTurnBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	logger := cfg.Logger.WithField("game_id", s.ID)

	bot := NewBot(cfg.Rand, cfg.Clock)
	if cfg.InstantBots {
		bot.delay = 0
	}
	return &Engine{
		session:   s,
		dealer:    NewDealer(cfg.Rand),
		human:     &humanProvider{channel: cfg.Channel, clock: cfg.Clock, timeout: cfg.TurnTimeout, logger: logger},
		bots:      &botProvider{bot: bot},
		store:     cfg.Store,
		notifier:  NewNotifier(cfg.Channel, logger),
		clock:     cfg.Clock,
		logger:    logger,
		actions:   cfg.Actions,
		onGameEnd: cfg.OnGameEnd,
		done:      make(chan struct{}),
	}
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Err is the error Run returned. Only valid after Done is closed.
func (e *Engine) Err() error { return e.err }

// Run plays every round and declares the winner. A returned error means the
// session was abandoned mid-turn and must be discarded.
func (e *Engine) Run(ctx context.Context) error {
	err := e.run(ctx)
	if err != nil {
		e.logger.WithError(err).Error("game aborted")
	}

	e.mu.Lock()
	final := PublicView(e.session)
	e.mu.Unlock()

	if e.onGameEnd != nil {
		e.onGameEnd(final, err)
	}
	e.err = err
	close(e.done)
	return err
}

func (e *Engine) run(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	if len(s.Seats) < 2 {
		return ErrNotEnoughPlayers
	}
	s.Started = true
	s.CurrentTurn = 1
	e.dealer.ShuffleSeats(s)
	e.logAction(uuid.Nil, "game_start", map[string]interface{}{"seats": len(s.Seats), "turnLimit": s.TurnLimit})
	e.logger.WithField("seats", len(s.Seats)).Info("game started")

	for s.CurrentTurn <= s.TurnLimit {
		if err := e.playRound(ctx); err != nil {
			return fmt.Errorf("round %d: %w", s.CurrentTurn, err)
		}
		e.scoreRound(ctx)
		s.CurrentTurn++
		if err := e.publish(ctx); err != nil {
			return err
		}
	}
	return e.finish(ctx)
}

func (e *Engine) playRound(ctx context.Context) error {
	s := e.session
	e.setupRound()
	if err := e.publish(ctx); err != nil {
		return err
	}
	active, _ := s.ActiveCard()
	e.notifier.Announce(ctx, s.ID, fmt.Sprintf("Round %d of %d starts on %s", s.CurrentTurn, s.TurnLimit, active))

	idx := 0
	for {
		out, err := e.playTurn(ctx, idx)
		if err != nil {
			return err
		}
		if e.roundOver() {
			return nil
		}
		if out == outcomeAdvance {
			idx = (idx + 1) % len(s.Seats)
		}
	}
}

// setupRound clears the table, deals fresh hands and flips the opening card.
func (e *Engine) setupRound() {
	s := e.session
	for _, seat := range s.Seats {
		seat.Hand = []models.Card{}
		seat.IsCurrentTurn = false
		seat.HasDrawn = false
		seat.SkipPending = false
		seat.PendingPenalty = 0
	}
	s.DiscardPile = []models.Card{}
	s.SuitOverride = nil

	e.dealer.InitializeAndShuffle(s)
	for _, seat := range s.Seats {
		seat.Hand = e.dealer.Deal(s, HandSize)
	}
	s.DiscardPile = append(s.DiscardPile, e.dealer.Deal(s, 1)...)

	opening, _ := s.ActiveCard()
	switch opening.Rank {
	case models.Nine:
		s.Seats[0].SkipPending = true
	case models.Seven:
		s.Seats[0].PendingPenalty = openingPenalty
	}
	e.logAction(uuid.Nil, "round_start", map[string]interface{}{"round": s.CurrentTurn, "opening": opening.String()})
}

func (e *Engine) roundOver() bool {
	for _, seat := range e.session.Seats {
		if len(seat.Hand) == 0 {
			return true
		}
	}
	return false
}

func (e *Engine) playTurn(ctx context.Context, idx int) (turnOutcome, error) {
	s := e.session
	seat := s.Seats[idx]
	for i, other := range s.Seats {
		other.IsCurrentTurn = i == idx
	}
	seat.HasDrawn = false
	if err := e.publish(ctx); err != nil {
		return outcomeAdvance, err
	}
	e.notifier.Announce(ctx, s.ID, fmt.Sprintf("It is %s's turn", seat.Player.Name))

	if seat.SkipPending {
		seat.SkipPending = false
		e.notifier.Announce(ctx, s.ID, fmt.Sprintf("%s loses their turn", seat.Player.Name))
		e.logAction(seat.Player.ID, "turn_skipped", nil)
		return e.endTurn(ctx, seat, outcomeAdvance)
	}

	if seat.PendingPenalty > 0 {
		out, resolved, err := e.resolvePenalty(ctx, idx)
		if err != nil || resolved {
			return out, err
		}
	}

	d, err := e.request(ctx, idx, false)
	if errors.Is(err, ErrTimeoutExpired) {
		e.notifier.Announce(ctx, s.ID, fmt.Sprintf("%s ran out of time", seat.Player.Name))
		d = Decision{Card: models.InvalidCard}
	} else if err != nil {
		return outcomeAdvance, err
	}
	return e.resolveMove(ctx, idx, d)
}

// resolvePenalty handles a seat that owes penalty cards. resolved is true
// when the turn is already over.
func (e *Engine) resolvePenalty(ctx context.Context, idx int) (out turnOutcome, resolved bool, err error) {
	s := e.session
	seat := s.Seats[idx]

	if !slices.ContainsFunc(seat.Hand, func(c models.Card) bool { return c.Rank == models.Seven }) {
		return outcomeAdvance, false, e.takePenalty(ctx, seat)
	}

	e.notifier.Whisper(ctx, seat.Player.ConnectionID,
		fmt.Sprintf("You owe %d cards. Answer with a Seven to pass them on.", seat.PendingPenalty))
	d, err := e.request(ctx, idx, true)
	if errors.Is(err, ErrTimeoutExpired) {
		return outcomeAdvance, false, e.takePenalty(ctx, seat)
	}
	if err != nil {
		return outcomeAdvance, true, err
	}

	active, _ := s.ActiveCard()
	held := d.Card.IsPass() || seat.Holds(d.Card)
	legal := held && IsLegal(active, s.SuitOverride, seat.HasDrawn, d.Card)
	switch {
	case legal && d.Card.Rank == models.Seven:
		next := s.Seats[(idx+1)%len(s.Seats)]
		e.place(seat, d.Card)
		next.PendingPenalty += seat.PendingPenalty + openingPenalty
		seat.PendingPenalty = 0
		e.logAction(seat.Player.ID, "penalty_countered", map[string]interface{}{"card": d.Card.String(), "next": next.Player.ID, "penalty": next.PendingPenalty})
		e.notifier.Announce(ctx, s.ID, fmt.Sprintf("%s answers with %s, %s now owes %d cards",
			seat.Player.Name, d.Card, next.Player.Name, next.PendingPenalty))
		out, err := e.endTurn(ctx, seat, outcomeAdvance)
		return out, true, err

	case legal:
		// any other legal answer is the turn's move and the penalty lapses
		seat.PendingPenalty = 0
		out, err := e.resolveMove(ctx, idx, d)
		return out, true, err

	default:
		seat.PendingPenalty = 0
		out, err := e.resolveMove(ctx, idx, Decision{Card: models.InvalidCard})
		return out, true, err
	}
}

func (e *Engine) takePenalty(ctx context.Context, seat *models.Seat) error {
	n := seat.PendingPenalty
	seat.PendingPenalty = 0
	drawn := e.drawCards(seat, n)
	e.logAction(seat.Player.ID, "penalty_drawn", map[string]interface{}{"count": len(drawn)})
	e.notifier.Announce(ctx, e.session.ID, fmt.Sprintf("%s draws %d penalty cards", seat.Player.Name, len(drawn)))
	return e.publish(ctx)
}

// resolveMove applies a decided move: Invalid draws one card, Pass does
// nothing, anything else is placed and its effect applied.
func (e *Engine) resolveMove(ctx context.Context, idx int, d Decision) (turnOutcome, error) {
	s := e.session
	seat := s.Seats[idx]
	name := seat.Player.Name
	card := d.Card
	active, _ := s.ActiveCard()

	held := card.IsSentinel() || seat.Holds(card)
	if !held || !IsLegal(active, s.SuitOverride, seat.HasDrawn, card) {
		drawn := e.drawCards(seat, 1)
		e.logAction(seat.Player.ID, "invalid_move", map[string]interface{}{"attempted": card.String(), "drawn": len(drawn)})
		e.notifier.Announce(ctx, s.ID, fmt.Sprintf("%s made an invalid move and draws a card", name))
		return e.endTurn(ctx, seat, outcomeAdvance)
	}

	if card.IsPass() {
		e.logAction(seat.Player.ID, "pass", nil)
		e.notifier.Announce(ctx, s.ID, fmt.Sprintf("%s passes", name))
		return e.endTurn(ctx, seat, outcomeAdvance)
	}

	e.place(seat, card)
	e.logAction(seat.Player.ID, "play_card", map[string]interface{}{"card": card.String()})
	next := s.Seats[(idx+1)%len(s.Seats)]

	switch card.Rank {
	case models.Eight:
		seat.HasDrawn = false
		e.notifier.Announce(ctx, s.ID, fmt.Sprintf("%s plays %s and goes again", name, card))
		return outcomeReplay, e.publish(ctx)

	case models.Nine:
		next.SkipPending = true
		e.notifier.Announce(ctx, s.ID, fmt.Sprintf("%s plays %s, %s will lose their turn", name, card, next.Player.Name))

	case models.Seven:
		next.PendingPenalty += openingPenalty
		e.notifier.Announce(ctx, s.ID, fmt.Sprintf("%s plays %s, %s owes %d cards", name, card, next.Player.Name, next.PendingPenalty))

	case models.Ace:
		suit, err := e.chooseSuit(ctx, idx, d)
		if err != nil {
			return outcomeAdvance, err
		}
		s.SuitOverride = &suit
		e.logAction(seat.Player.ID, "change_suit", map[string]interface{}{"suit": suit.String()})
		e.notifier.Announce(ctx, s.ID, fmt.Sprintf("%s plays %s and calls %s", name, card, suit))

	default:
		e.notifier.Announce(ctx, s.ID, fmt.Sprintf("%s plays %s", name, card))
	}
	return e.endTurn(ctx, seat, outcomeAdvance)
}

// chooseSuit settles the suit called by the Ace just placed. Anything other
// than a playable suit falls back to the Ace's own.
func (e *Engine) chooseSuit(ctx context.Context, idx int, d Decision) (models.Suit, error) {
	seat := e.session.Seats[idx]
	suit := models.SuitInvalid
	switch {
	case d.Suit != nil:
		suit = *d.Suit
	case len(seat.Hand) > 0:
		// the card is down, so no draw may slip in while the suit is pending
		seat.IsCurrentTurn = false
		if err := e.publish(ctx); err != nil {
			return suit, err
		}
		req := e.moveRequest(idx)
		provider := e.providerFor(seat)
		e.mu.Unlock()
		chosen, err := provider.Suit(ctx, req, d.Card)
		e.mu.Lock()
		if err != nil && !errors.Is(err, ErrTimeoutExpired) {
			return suit, err
		}
		if err == nil {
			suit = chosen
		}
	}
	if !suit.Valid() {
		suit = d.Card.Suit
	}
	return suit, nil
}

// place moves card from the seat's hand onto the discard pile.
func (e *Engine) place(seat *models.Seat, card models.Card) {
	seat.RemoveCard(card)
	e.session.DiscardPile = append(e.session.DiscardPile, card)
	e.session.SuitOverride = nil
}

func (e *Engine) endTurn(ctx context.Context, seat *models.Seat, out turnOutcome) (turnOutcome, error) {
	seat.IsCurrentTurn = false
	seat.HasDrawn = false
	seat.PendingPenalty = 0
	return out, e.publish(ctx)
}

func (e *Engine) scoreRound(ctx context.Context) {
	s := e.session
	scores := make(map[string]interface{}, len(s.Seats))
	for _, seat := range s.Seats {
		seat.Score += HandPoints(seat.Hand)
		seat.IsCurrentTurn = false
		scores[seat.Player.ID.String()] = seat.Score
	}
	e.logAction(uuid.Nil, "round_end", map[string]interface{}{"round": s.CurrentTurn, "scores": scores})
	e.notifier.Announce(ctx, s.ID, fmt.Sprintf("Round %d is over", s.CurrentTurn))
}

// finish declares the lowest total the winner. On a tie the earliest seat wins.
func (e *Engine) finish(ctx context.Context) error {
	s := e.session
	s.GameOver = true
	winner := s.Seats[0]
	for _, seat := range s.Seats[1:] {
		if seat.Score < winner.Score {
			winner = seat
		}
	}
	s.WinnerID = winner.Player.ID
	if err := e.publish(ctx); err != nil {
		return err
	}
	e.logAction(winner.Player.ID, "game_end", map[string]interface{}{"score": winner.Score})
	e.notifier.GameOver(ctx, s)
	e.notifier.Announce(ctx, s.ID, fmt.Sprintf("%s wins with %d points", winner.Player.Name, winner.Score))
	e.logger.WithFields(logrus.Fields{"winner": winner.Player.ID, "score": winner.Score}).Info("game over")
	return nil
}

// request asks the seat's provider for a move with the lock released, so
// draws and reconnects can get through while a human thinks.
func (e *Engine) request(ctx context.Context, idx int, counter bool) (Decision, error) {
	seat := e.session.Seats[idx]
	req := e.moveRequest(idx)
	provider := e.providerFor(seat)

	e.mu.Unlock()
	defer e.mu.Lock()
	if counter {
		return provider.Counter(ctx, req)
	}
	return provider.Move(ctx, req)
}

func (e *Engine) providerFor(seat *models.Seat) MoveProvider {
	if seat.Player.IsBot {
		return e.bots
	}
	return e.human
}

// moveRequest copies what an actor may see, so it stays valid after the lock is released.
func (e *Engine) moveRequest(idx int) MoveRequest {
	s := e.session
	seat := s.Seats[idx]
	next := s.Seats[(idx+1)%len(s.Seats)]
	view := BotView{
		Hand:         slices.Clone(seat.Hand),
		DiscardPile:  slices.Clone(s.DiscardPile),
		HasDrawn:     seat.HasDrawn,
		NextHandSize: len(next.Hand),
		HeadsUp:      len(s.Seats) == 2,
	}
	if s.SuitOverride != nil {
		suit := *s.SuitOverride
		view.SuitOverride = &suit
	}
	playerID := seat.Player.ID
	return MoveRequest{
		GameID:         s.ID,
		Player:         seat.Player,
		View:           view,
		PendingPenalty: seat.PendingPenalty,
		Draw: func(ctx context.Context) (models.Card, bool, error) {
			c, err := e.DrawCard(ctx, playerID)
			if errors.Is(err, ErrDeckEmpty) {
				return models.InvalidCard, false, nil
			}
			return c, err == nil, err
		},
	}
}

// DrawCard gives the current seat its one draw for the turn.
func (e *Engine) DrawCard(ctx context.Context, playerID uuid.UUID) (models.Card, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	seat := s.Seat(playerID)
	if seat == nil {
		return models.InvalidCard, fmt.Errorf("%w: player %s in game %s", ErrEntityNotFound, playerID, s.ID)
	}
	if s.GameOver || !seat.IsCurrentTurn {
		return models.InvalidCard, ErrNotYourTurn
	}
	if seat.HasDrawn {
		return models.InvalidCard, ErrAlreadyDrawn
	}

	seat.HasDrawn = true
	drawn := e.drawCards(seat, 1)
	e.logAction(playerID, "draw_card", map[string]interface{}{"count": len(drawn)})
	if err := e.publish(ctx); err != nil {
		return models.InvalidCard, err
	}
	if len(drawn) == 0 {
		return models.InvalidCard, ErrDeckEmpty
	}
	e.notifier.Announce(ctx, s.ID, fmt.Sprintf("%s draws a card", seat.Player.Name))
	return drawn[0], nil
}

func (e *Engine) drawCards(seat *models.Seat, n int) []models.Card {
	drawn := e.dealer.Deal(e.session, n)
	seat.Hand = append(seat.Hand, drawn...)
	if len(drawn) < n {
		e.logger.WithFields(logrus.Fields{"wanted": n, "got": len(drawn)}).Warn("deck exhausted")
	}
	return drawn
}

// ValidateMove checks move for playerID against the live session.
func (e *Engine) ValidateMove(playerID uuid.UUID, move models.Card) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return validateMove(e.session, playerID, move)
}

// UpdateConnection points a seated human at a new client connection and resyncs it.
func (e *Engine) UpdateConnection(ctx context.Context, playerID uuid.UUID, connID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	seat := e.session.Seat(playerID)
	if seat == nil {
		return fmt.Errorf("%w: player %s in game %s", ErrEntityNotFound, playerID, e.session.ID)
	}
	seat.Player.ConnectionID = connID
	return e.publish(ctx)
}

// Snapshot returns the public view of the live session.
func (e *Engine) Snapshot() PublicState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return PublicView(e.session)
}

// Announce broadcasts a chat message into the session.
func (e *Engine) Announce(ctx context.Context, sender, message string) {
	e.notifier.Broadcast(ctx, e.session.ID, sender, message)
}

// publish persists the session, then pushes the new state to clients.
func (e *Engine) publish(ctx context.Context) error {
	if err := e.store.Save(ctx, e.session); err != nil {
		return fmt.Errorf("persist game %s: %w", e.session.ID, err)
	}
	e.notifier.PublishState(ctx, e.session)
	return nil
}

// logAction hands an entry of the action log to the sink without blocking play.
func (e *Engine) logAction(actor uuid.UUID, actionType string, payload map[string]interface{}) {
	e.actionIndex++
	if e.actions == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	rec := models.GameAction{
		GameID:      e.session.ID,
		ActionIndex: e.actionIndex,
		ActorID:     actor,
		ActionType:  actionType,
		Payload:     payload,
		Timestamp:   e.clock.Now().UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionPublishTimeout)
		defer cancel()
		if err := e.actions.PublishAction(ctx, rec); err != nil {
			e.logger.WithError(err).WithField("action", actionType).Warn("failed to publish game action")
		}
	}()
}

func validateMove(s *models.Session, playerID uuid.UUID, move models.Card) error {
	seat := s.Seat(playerID)
	if seat == nil {
		return fmt.Errorf("%w: player %s in game %s", ErrEntityNotFound, playerID, s.ID)
	}
	active, ok := s.ActiveCard()
	if !ok || !s.Started || s.GameOver || !seat.IsCurrentTurn {
		return ErrNotYourTurn
	}
	if move.IsPass() && !seat.HasDrawn {
		return ErrPassWithoutDraw
	}
	if !move.IsSentinel() && !seat.Holds(move) {
		return ErrIllegalMove
	}
	if !IsLegal(active, s.SuitOverride, seat.HasDrawn, move) {
		return ErrIllegalMove
	}
	return nil
}
