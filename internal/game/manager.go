package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/models"
	"github.com/sirupsen/logrus"
)

// MaxTurnLimit caps the number of rounds a game can be created with.
const MaxTurnLimit = 20

// ErrEmptyMessage is returned for blank chat messages.
var ErrEmptyMessage = errors.New("message is empty")

// SessionRepository loads and saves sessions.
type SessionRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
}

// PlayerRepository loads and saves players.
type PlayerRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Player, error)
	Save(ctx context.Context, p *models.Player) error
}

// ResultRecorder stores the outcome of a finished game.
type ResultRecorder interface {
	RecordGameResults(ctx context.Context, final PublicState) error
}

type ManagerConfig struct {
	Sessions    SessionRepository
	Players     PlayerRepository
	Channel     Channel
	Clock       quartz.Clock
	TurnTimeout time.Duration
	Logger      logrus.FieldLogger
	Actions     ActionSink
	Results     ResultRecorder
	NewRand     func() *rand.Rand
	InstantBots bool
}

// Manager owns the lifecycle of games: creation, seating, start, and the
// requests that reach a game from outside its turn loop. Before a game
// starts, writes to its session are serialized here; afterwards its Engine
// is the only writer.
type Manager struct {
	cfg      ManagerConfig
	mu       sync.Mutex
	live     *GameStore
	notifier *Notifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.NewRand == nil {
		cfg.NewRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		live:     NewGameStore(),
		notifier: NewNotifier(cfg.Channel, cfg.Logger),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Close stops every running game and waits for the engines to exit.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// CreatePlayer registers a player. Bots get a generated name; humans may not
// use a blank name or the announcer's.
func (m *Manager) CreatePlayer(ctx context.Context, name string, isBot bool) (*models.Player, error) {
	id := uuid.New()
	name = strings.TrimSpace(name)
	if isBot {
		name = "Bot_" + strings.ReplaceAll(id.String(), "-", "")[:5]
	} else if name == "" || strings.EqualFold(name, AnnouncerName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	p := &models.Player{ID: id, Name: name, IsBot: isBot}
	if err := m.cfg.Players.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save player: %w", err)
	}
	return p, nil
}

// CreateGame opens an empty table that plays turnLimit rounds.
func (m *Manager) CreateGame(ctx context.Context, creatorID uuid.UUID, turnLimit int) (*models.Session, error) {
	if turnLimit < 1 || turnLimit > MaxTurnLimit {
		return nil, ErrInvalidTurnLimit
	}
	if _, err := m.cfg.Players.Get(ctx, creatorID); err != nil {
		return nil, err
	}
	s := models.NewSession(turnLimit, m.cfg.Clock.Now())
	if err := m.cfg.Sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save game: %w", err)
	}
	m.cfg.Logger.WithFields(logrus.Fields{"game_id": s.ID, "creator": creatorID, "turns": turnLimit}).Info("game created")
	return s, nil
}

// JoinGame seats playerID, or refreshes the connection of a player already
// seated. connID is ignored for bots.
func (m *Manager) JoinGame(ctx context.Context, gameID, playerID uuid.UUID, isLeader bool, connID string) (PublicState, error) {
	p, err := m.cfg.Players.Get(ctx, playerID)
	if err != nil {
		return PublicState{}, err
	}
	if !p.IsBot && connID != "" {
		p.ConnectionID = connID
		if err := m.cfg.Players.Save(ctx, p); err != nil {
			return PublicState{}, fmt.Errorf("save player: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if eng, ok := m.live.GetGame(gameID); ok {
		if err := eng.UpdateConnection(ctx, playerID, p.ConnectionID); err != nil {
			if errors.Is(err, ErrEntityNotFound) {
				return PublicState{}, ErrAlreadyStarted
			}
			return PublicState{}, err
		}
		m.addToGroup(p, gameID)
		return eng.Snapshot(), nil
	}

	s, err := m.cfg.Sessions.Get(ctx, gameID)
	if err != nil {
		return PublicState{}, err
	}

	if seat := s.Seat(playerID); seat != nil {
		seat.Player.ConnectionID = p.ConnectionID
	} else {
		switch {
		case s.Started:
			return PublicState{}, ErrAlreadyStarted
		case len(s.Seats) >= models.MaxSeats:
			return PublicState{}, ErrCapacityExceeded
		case isLeader && s.Leader() != nil:
			return PublicState{}, ErrDuplicateLeader
		}
		s.Seats = append(s.Seats, &models.Seat{Player: *p, Hand: []models.Card{}, IsLeader: isLeader})
		m.cfg.Logger.WithFields(logrus.Fields{"game_id": gameID, "player": playerID, "leader": isLeader}).Info("player joined")
	}

	if err := m.cfg.Sessions.Save(ctx, s); err != nil {
		return PublicState{}, fmt.Errorf("save game: %w", err)
	}
	m.addToGroup(p, gameID)
	m.notifier.PlayerJoined(ctx, gameID, *p)
	m.notifier.PublishState(ctx, s)
	return PublicView(s), nil
}

// SeatBot lets the seated leader of a game add a bot to it.
func (m *Manager) SeatBot(ctx context.Context, gameID, leaderID, botID uuid.UUID) (PublicState, error) {
	bot, err := m.cfg.Players.Get(ctx, botID)
	if err != nil {
		return PublicState{}, err
	}
	if !bot.IsBot {
		return PublicState{}, fmt.Errorf("%w: %s", ErrNotABot, botID)
	}
	view, err := m.Game(ctx, gameID)
	if err != nil {
		return PublicState{}, err
	}
	leader := slices.IndexFunc(view.Seats, func(seat PublicSeat) bool {
		return seat.PlayerID == leaderID && seat.IsLeader
	})
	if leader < 0 {
		return PublicState{}, ErrNotLeader
	}
	return m.JoinGame(ctx, gameID, botID, false, "")
}

func (m *Manager) addToGroup(p *models.Player, gameID uuid.UUID) {
	if !p.IsBot && p.ConnectionID != "" {
		m.cfg.Channel.AddToGroup(p.ConnectionID, GroupName(gameID))
	}
}

// StartGame hands the session to a new Engine and runs it in the background.
func (m *Manager) StartGame(ctx context.Context, gameID, initiatorID uuid.UUID) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live.GetGame(gameID); ok {
		return nil, ErrAlreadyStarted
	}
	s, err := m.cfg.Sessions.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if s.Started {
		return nil, ErrAlreadyStarted
	}
	if seat := s.Seat(initiatorID); seat == nil || !seat.IsLeader {
		return nil, ErrNotLeader
	}
	if len(s.Seats) < 2 {
		return nil, ErrNotEnoughPlayers
	}

	eng := NewEngine(s, EngineConfig{
		Store:       m.cfg.Sessions,
		Channel:     m.cfg.Channel,
		Clock:       m.cfg.Clock,
		Rand:        m.cfg.NewRand(),
		TurnTimeout: m.cfg.TurnTimeout,
		Logger:      m.cfg.Logger,
		Actions:     m.cfg.Actions,
		InstantBots: m.cfg.InstantBots,
		OnGameEnd: func(final PublicState, err error) {
			m.gameEnded(final, err)
		},
	})
	m.live.AddGame(gameID, eng)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = eng.Run(m.ctx)
	}()
	return eng, nil
}

func (m *Manager) gameEnded(final PublicState, err error) {
	m.live.DeleteGame(final.GameID)
	if err != nil || m.cfg.Results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.cfg.Results.RecordGameResults(ctx, final); err != nil {
		m.cfg.Logger.WithError(err).WithField("game_id", final.GameID).Error("failed to record game results")
	}
}

// ValidateMove is the pre-flight check a client runs before submitting a move.
func (m *Manager) ValidateMove(ctx context.Context, gameID, playerID uuid.UUID, move models.Card) error {
	if eng, ok := m.live.GetGame(gameID); ok {
		return eng.ValidateMove(playerID, move)
	}
	s, err := m.cfg.Sessions.Get(ctx, gameID)
	if err != nil {
		return err
	}
	return validateMove(s, playerID, move)
}

// DrawCard draws the current player's one card for the turn.
func (m *Manager) DrawCard(ctx context.Context, gameID, playerID uuid.UUID) (models.Card, error) {
	if eng, ok := m.live.GetGame(gameID); ok {
		return eng.DrawCard(ctx, playerID)
	}
	s, err := m.cfg.Sessions.Get(ctx, gameID)
	if err != nil {
		return models.InvalidCard, err
	}
	if s.Seat(playerID) == nil {
		return models.InvalidCard, fmt.Errorf("%w: player %s in game %s", ErrEntityNotFound, playerID, gameID)
	}
	return models.InvalidCard, ErrNotYourTurn
}

// BroadcastMessage relays a chat message from a seated player to the table.
func (m *Manager) BroadcastMessage(ctx context.Context, gameID, playerID uuid.UUID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyMessage
	}
	s, err := m.cfg.Sessions.Get(ctx, gameID)
	if err != nil {
		return err
	}
	seat := s.Seat(playerID)
	if seat == nil {
		return fmt.Errorf("%w: player %s in game %s", ErrEntityNotFound, playerID, gameID)
	}
	m.notifier.Broadcast(ctx, gameID, seat.Player.Name, message)
	return nil
}

// Game returns the public view of a game, live if it is being played.
func (m *Manager) Game(ctx context.Context, gameID uuid.UUID) (PublicState, error) {
	if eng, ok := m.live.GetGame(gameID); ok {
		return eng.Snapshot(), nil
	}
	s, err := m.cfg.Sessions.Get(ctx, gameID)
	if err != nil {
		return PublicState{}, err
	}
	return PublicView(s), nil
}

// Player looks up a registered player.
func (m *Manager) Player(ctx context.Context, playerID uuid.UUID) (*models.Player, error) {
	return m.cfg.Players.Get(ctx, playerID)
}
