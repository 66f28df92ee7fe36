package game

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/models"
	"github.com/sirupsen/logrus"
)

// MoveRequest describes the seat being asked to act.
type MoveRequest struct {
	GameID         uuid.UUID
	Player         models.Player
	View           BotView
	PendingPenalty int
	Draw           DrawFunc
}

// MoveProvider supplies the moves of one kind of actor. Implementations
// return ErrTimeoutExpired when the actor ran out of time.
type MoveProvider interface {
	// Move asks for the card to play (or Pass) on a normal turn.
	Move(ctx context.Context, req MoveRequest) (Decision, error)
	// Counter asks a seat facing a penalty whether to answer it.
	Counter(ctx context.Context, req MoveRequest) (Decision, error)
	// Suit asks which suit an Ace just played should call.
	Suit(ctx context.Context, req MoveRequest, ace models.Card) (models.Suit, error)
}

// humanProvider asks a connected client and waits at most timeout for the answer.
type humanProvider struct {
	channel Channel
	clock   quartz.Clock
	timeout time.Duration
	logger  logrus.FieldLogger
}

func (h *humanProvider) ask(ctx context.Context, req MoveRequest, event string, into any) error {
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	timer := h.clock.AfterFunc(h.timeout, func() {
		cancel(ErrTimeoutExpired)
	}, "human", event)
	defer timer.Stop()

	payload := TurnRequest{
		GameID:         req.GameID.String(),
		TimeoutSeconds: int(h.timeout / time.Second),
		HasDrawn:       req.View.HasDrawn,
		PendingPenalty: req.PendingPenalty,
	}
	raw, err := h.channel.RequestOne(reqCtx, req.Player.ConnectionID, event, payload)
	if err != nil {
		if errors.Is(context.Cause(reqCtx), ErrTimeoutExpired) {
			return ErrTimeoutExpired
		}
		return err
	}
	// a malformed answer leaves into empty, which the caller treats as no move
	if err := json.Unmarshal(raw, into); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{"conn": req.Player.ConnectionID, "event": event}).Debug("discarding malformed answer")
	}
	return nil
}

func (h *humanProvider) move(ctx context.Context, req MoveRequest, event string) (Decision, error) {
	var resp MoveResponse
	if err := h.ask(ctx, req, event, &resp); err != nil {
		return Decision{}, err
	}
	if resp.Card == nil {
		return Decision{Card: models.InvalidCard}, nil
	}
	return Decision{Card: *resp.Card}, nil
}

func (h *humanProvider) Move(ctx context.Context, req MoveRequest) (Decision, error) {
	return h.move(ctx, req, RequestPlayTurn)
}

func (h *humanProvider) Counter(ctx context.Context, req MoveRequest) (Decision, error) {
	return h.move(ctx, req, RequestCounterSeven)
}

func (h *humanProvider) Suit(ctx context.Context, req MoveRequest, _ models.Card) (models.Suit, error) {
	var resp SuitResponse
	if err := h.ask(ctx, req, RequestChangeSuit, &resp); err != nil {
		return models.SuitInvalid, err
	}
	if resp.Suit == nil {
		return models.SuitInvalid, nil
	}
	return *resp.Suit, nil
}

// botProvider answers from the heuristic. Its decisions already carry the
// suit for an Ace, so Suit is only a fallback.
type botProvider struct {
	bot *Bot
}

func (b *botProvider) Move(ctx context.Context, req MoveRequest) (Decision, error) {
	return b.bot.Decide(ctx, req.View, req.Draw)
}

func (b *botProvider) Counter(ctx context.Context, req MoveRequest) (Decision, error) {
	return b.bot.Decide(ctx, req.View, req.Draw)
}

func (b *botProvider) Suit(_ context.Context, _ MoveRequest, ace models.Card) (models.Suit, error) {
	return ace.Suit, nil
}
