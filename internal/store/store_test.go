package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore(quartz.NewMock(t))
	sessions := &Sessions{Store: mem}

	s := models.NewSession(3, time.Now())
	s.Seats = append(s.Seats, &models.Seat{
		Player:   models.Player{ID: uuid.New(), Name: "ann"},
		Hand:     []models.Card{{Suit: models.Hearts, Rank: models.Seven}},
		IsLeader: true,
	})
	spades := models.Spades
	s.SuitOverride = &spades
	require.NoError(t, sessions.Save(ctx, s))

	got, err := sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, 3, got.TurnLimit)
	require.Len(t, got.Seats, 1)
	assert.Equal(t, s.Seats[0].Hand, got.Seats[0].Hand)
	require.NotNil(t, got.SuitOverride)
	assert.Equal(t, models.Spades, *got.SuitOverride)
}

func TestMemoryStoreMissingAndMismatch(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore(quartz.NewMock(t))
	players := &Players{Store: mem}
	sessions := &Sessions{Store: mem}

	_, err := sessions.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	p := &models.Player{ID: uuid.New(), Name: "bob"}
	require.NoError(t, players.Save(ctx, p))

	// a player id read as a session is a type mismatch
	_, err = sessions.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := players.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Name)

	require.NoError(t, mem.Delete(ctx, p.ID.String()))
	_, err = players.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	mem := NewMemoryStore(clock)
	players := &Players{Store: mem, TTL: time.Minute}

	p := &models.Player{ID: uuid.New(), Name: "cat"}
	require.NoError(t, players.Save(ctx, p))

	clock.Set(clock.Now().Add(59 * time.Second))
	_, err := players.Get(ctx, p.ID)
	require.NoError(t, err)

	// saving again slides the expiry forward
	require.NoError(t, players.Save(ctx, p))
	clock.Set(clock.Now().Add(59 * time.Second))
	_, err = players.Get(ctx, p.ID)
	require.NoError(t, err)

	clock.Set(clock.Now().Add(time.Minute))
	_, err = players.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestRedisStore needs a reachable Redis; it is skipped otherwise.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	rs := NewRedisStore(rdb, "suspense_test:")
	sessions := &Sessions{Store: rs, TTL: time.Minute}
	players := &Players{Store: rs, TTL: time.Minute}

	s := models.NewSession(1, time.Now())
	require.NoError(t, sessions.Save(ctx, s))
	defer rs.Delete(ctx, s.ID.String())

	got, err := sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = players.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = sessions.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
