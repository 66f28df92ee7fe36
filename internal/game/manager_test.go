package game

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/models"
	"github.com/jason-s-yu/suspense/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedResults struct {
	mu    sync.Mutex
	games []PublicState
}

func (r *recordedResults) RecordGameResults(_ context.Context, final PublicState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games = append(r.games, final)
	return nil
}

func (r *recordedResults) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games)
}

func setupManager(t *testing.T) (*Manager, *mockChannel, *recordedResults) {
	t.Helper()
	clock := quartz.NewMock(t)
	mem := store.NewMemoryStore(clock)
	mc := newMockChannel()
	results := &recordedResults{}
	var seed uint64
	m := NewManager(ManagerConfig{
		Sessions:    &store.Sessions{Store: mem},
		Players:     &store.Players{Store: mem},
		Channel:     mc,
		Clock:       clock,
		Logger:      quietLogger(),
		Results:     results,
		InstantBots: true,
		NewRand: func() *rand.Rand {
			seed++
			return rand.New(rand.NewPCG(seed, 99))
		},
	})
	t.Cleanup(m.Close)
	return m, mc, results
}

func TestCreatePlayer(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()

	p, err := m.CreatePlayer(ctx, "  ann ", false)
	require.NoError(t, err)
	assert.Equal(t, "ann", p.Name)

	got, err := m.Player(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	bot, err := m.CreatePlayer(ctx, "ignored", true)
	require.NoError(t, err)
	assert.True(t, bot.IsBot)
	assert.True(t, strings.HasPrefix(bot.Name, "Bot_"))
	assert.Len(t, bot.Name, len("Bot_")+5)

	_, err = m.CreatePlayer(ctx, "   ", false)
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = m.CreatePlayer(ctx, "game", false)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = m.Player(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestCreateGameValidatesTurns(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()
	p, err := m.CreatePlayer(ctx, "ann", false)
	require.NoError(t, err)

	_, err = m.CreateGame(ctx, p.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidTurnLimit)
	_, err = m.CreateGame(ctx, p.ID, MaxTurnLimit+1)
	assert.ErrorIs(t, err, ErrInvalidTurnLimit)
	_, err = m.CreateGame(ctx, uuid.New(), 3)
	assert.ErrorIs(t, err, ErrEntityNotFound)

	s, err := m.CreateGame(ctx, p.ID, 3)
	require.NoError(t, err)
	view, err := m.Game(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.TurnLimit)
	assert.Empty(t, view.Seats)
}

func TestJoinGameRules(t *testing.T) {
	m, mc, _ := setupManager(t)
	ctx := context.Background()

	players := make([]*models.Player, 5)
	for i := range players {
		p, err := m.CreatePlayer(ctx, string(rune('a'+i)), false)
		require.NoError(t, err)
		players[i] = p
	}
	s, err := m.CreateGame(ctx, players[0].ID, 1)
	require.NoError(t, err)

	view, err := m.JoinGame(ctx, s.ID, players[0].ID, true, "c0")
	require.NoError(t, err)
	assert.Len(t, view.Seats, 1)
	assert.True(t, view.Seats[0].IsLeader)

	_, err = m.JoinGame(ctx, s.ID, players[1].ID, true, "c1")
	assert.ErrorIs(t, err, ErrDuplicateLeader)

	for i := 1; i < 4; i++ {
		_, err = m.JoinGame(ctx, s.ID, players[i].ID, false, "c"+string(rune('0'+i)))
		require.NoError(t, err)
	}
	_, err = m.JoinGame(ctx, s.ID, players[4].ID, false, "c4")
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// a seated player reconnecting at a full table keeps the same seat
	view, err = m.JoinGame(ctx, s.ID, players[1].ID, false, "c1-new")
	require.NoError(t, err)
	assert.Len(t, view.Seats, 4)

	mc.mu.Lock()
	assert.Contains(t, mc.groups[GroupName(s.ID)], "c1-new")
	mc.mu.Unlock()

	_, err = m.JoinGame(ctx, uuid.New(), players[1].ID, false, "c1")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestSeatBotRules(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()

	leader, err := m.CreatePlayer(ctx, "ann", false)
	require.NoError(t, err)
	guest, err := m.CreatePlayer(ctx, "bob", false)
	require.NoError(t, err)
	bot, err := m.CreatePlayer(ctx, "", true)
	require.NoError(t, err)
	s, err := m.CreateGame(ctx, leader.ID, 1)
	require.NoError(t, err)

	// nobody leads yet
	_, err = m.SeatBot(ctx, s.ID, leader.ID, bot.ID)
	assert.ErrorIs(t, err, ErrNotLeader)

	_, err = m.JoinGame(ctx, s.ID, leader.ID, true, "c0")
	require.NoError(t, err)
	_, err = m.JoinGame(ctx, s.ID, guest.ID, false, "c1")
	require.NoError(t, err)

	_, err = m.SeatBot(ctx, s.ID, guest.ID, bot.ID)
	assert.ErrorIs(t, err, ErrNotLeader)
	_, err = m.SeatBot(ctx, s.ID, leader.ID, guest.ID)
	assert.ErrorIs(t, err, ErrNotABot)
	_, err = m.SeatBot(ctx, s.ID, leader.ID, uuid.New())
	assert.ErrorIs(t, err, ErrEntityNotFound)

	view, err := m.SeatBot(ctx, s.ID, leader.ID, bot.ID)
	require.NoError(t, err)
	require.Len(t, view.Seats, 3)
	assert.Equal(t, bot.ID, view.Seats[2].PlayerID)
	assert.True(t, view.Seats[2].IsBot)
	assert.False(t, view.Seats[2].IsLeader)
}

func TestStartGameRules(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()

	leader, err := m.CreatePlayer(ctx, "ann", false)
	require.NoError(t, err)
	other, err := m.CreatePlayer(ctx, "bob", false)
	require.NoError(t, err)
	s, err := m.CreateGame(ctx, leader.ID, 1)
	require.NoError(t, err)

	_, err = m.JoinGame(ctx, s.ID, leader.ID, true, "c0")
	require.NoError(t, err)
	_, err = m.StartGame(ctx, s.ID, leader.ID)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	_, err = m.JoinGame(ctx, s.ID, other.ID, false, "c1")
	require.NoError(t, err)
	_, err = m.StartGame(ctx, s.ID, other.ID)
	assert.ErrorIs(t, err, ErrNotLeader)

	_, err = m.DrawCard(ctx, s.ID, leader.ID)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.ErrorIs(t, m.ValidateMove(ctx, s.ID, leader.ID, card(models.Hearts, models.Two)), ErrNotYourTurn)
}

func TestBotGameThroughManager(t *testing.T) {
	m, mc, results := setupManager(t)
	ctx := context.Background()

	human, err := m.CreatePlayer(ctx, "ann", false)
	require.NoError(t, err)
	s, err := m.CreateGame(ctx, human.ID, 2)
	require.NoError(t, err)

	var bots []*models.Player
	for i := 0; i < 3; i++ {
		b, err := m.CreatePlayer(ctx, "", true)
		require.NoError(t, err)
		_, err = m.JoinGame(ctx, s.ID, b.ID, i == 0, "")
		require.NoError(t, err)
		bots = append(bots, b)
	}

	_, err = m.StartGame(ctx, s.ID, human.ID)
	assert.ErrorIs(t, err, ErrNotLeader)
	eng, err := m.StartGame(ctx, s.ID, bots[0].ID)
	require.NoError(t, err)
	_, err = m.StartGame(ctx, s.ID, bots[0].ID)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	_, err = m.JoinGame(ctx, s.ID, human.ID, false, "c-ann")
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	select {
	case <-eng.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("game did not finish")
	}
	require.NoError(t, eng.Err())

	require.Eventually(t, func() bool { return results.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, m.live.Len())

	view, err := m.Game(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, view.GameOver)
	require.NotNil(t, view.WinnerID)
	assert.NotEmpty(t, mc.groupEventsOf(EventGameOver))

	require.NoError(t, m.BroadcastMessage(ctx, s.ID, bots[1].ID, "gg"))
	assert.ErrorIs(t, m.BroadcastMessage(ctx, s.ID, bots[1].ID, "  "), ErrEmptyMessage)
	assert.ErrorIs(t, m.BroadcastMessage(ctx, s.ID, human.ID, "hi"), ErrEntityNotFound)
}
