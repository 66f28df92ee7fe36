package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/game"
	"github.com/jason-s-yu/suspense/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectTestDB needs DATABASE_URL pointing at a scratch database.
func connectTestDB(t *testing.T) *Recorder {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := ConnectDB(ctx, url)
	if err != nil {
		t.Skipf("postgres not reachable: %v", err)
	}
	t.Cleanup(pool.Close)
	require.NoError(t, EnsureSchema(ctx, pool))
	return NewRecorder(pool)
}

func TestRecordGameResults(t *testing.T) {
	r := connectTestDB(t)
	ctx := context.Background()

	ann, bob := uuid.New(), uuid.New()
	final := game.PublicState{
		GameID:    uuid.New(),
		TurnLimit: 2,
		GameOver:  true,
		WinnerID:  &ann,
		Seats: []game.PublicSeat{
			{PlayerID: ann, Name: "ann", Score: 4},
			{PlayerID: bob, Name: "Bot_1a2b3", IsBot: true, Score: 31},
		},
	}
	require.NoError(t, r.RecordGameResults(ctx, final))
	// recording twice updates in place
	require.NoError(t, r.RecordGameResults(ctx, final))

	var status string
	require.NoError(t, r.pool.QueryRow(ctx, `SELECT status FROM games WHERE id = $1`, final.GameID).Scan(&status))
	assert.Equal(t, "completed", status)

	var wins int
	require.NoError(t, r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM game_results WHERE game_id = $1 AND did_win`, final.GameID).Scan(&wins))
	assert.Equal(t, 1, wins)
}

func TestInsertActionsAndAbandon(t *testing.T) {
	r := connectTestDB(t)
	ctx := context.Background()

	gameID := uuid.New()
	now := time.Now().UnixMilli()
	batch := []models.GameAction{
		{GameID: gameID, ActionIndex: 1, ActionType: "game_start", Timestamp: now},
		{GameID: gameID, ActionIndex: 2, ActorID: uuid.New(), ActionType: "draw_card", Payload: map[string]interface{}{"count": 1}, Timestamp: now},
	}
	require.NoError(t, r.InsertActions(ctx, batch))
	require.NoError(t, r.InsertActions(ctx, batch[1:]), "duplicates are ignored")

	var n int
	require.NoError(t, r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM game_actions WHERE game_id = $1`, gameID).Scan(&n))
	assert.Equal(t, 2, n)

	require.NoError(t, r.MarkAbandoned(ctx, gameID))
	var status string
	require.NoError(t, r.pool.QueryRow(ctx, `SELECT status FROM games WHERE id = $1`, gameID).Scan(&status))
	assert.Equal(t, "abandoned", status)
}
