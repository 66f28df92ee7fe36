package game

import (
	"errors"

	"github.com/jason-s-yu/suspense/internal/store"
)

var (
	// ErrEntityNotFound covers unknown ids and stored values of the wrong type.
	ErrEntityNotFound = store.ErrNotFound

	ErrIllegalMove      = errors.New("illegal move")
	ErrPassWithoutDraw  = errors.New("you must draw a card before passing")
	ErrCapacityExceeded = errors.New("game is full")
	ErrDuplicateLeader  = errors.New("game already has a leader")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAlreadyDrawn     = errors.New("already drew this turn")
	ErrAlreadyStarted   = errors.New("game already started")
	ErrNotLeader        = errors.New("only the leader can start the game")
	ErrNotEnoughPlayers = errors.New("at least two players are required")
	ErrInvalidTurnLimit = errors.New("turn limit must be between 1 and 20")
	ErrInvalidName      = errors.New("invalid player name")
	ErrNotABot          = errors.New("only bots can be seated by another player")

	// ErrDeckEmpty is returned by DrawCard when neither deck nor discard pile had a card to give.
	ErrDeckEmpty = errors.New("no cards left to draw")

	// ErrTimeoutExpired never leaves the engine; a human who runs out of time
	// simply forfeits the move.
	ErrTimeoutExpired = errors.New("turn timeout expired")
)
