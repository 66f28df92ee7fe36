// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/suspense/internal/game"
	"github.com/jason-s-yu/suspense/internal/models"
)

// Recorder writes finished games and the historian's action batches to Postgres.
type Recorder struct {
	pool *pgxpool.Pool
}

func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// RecordGameResults persists the final outcome of a game: the game row with
// its final public state, and one result row per seat.
func (r *Recorder) RecordGameResults(ctx context.Context, final game.PublicState) error {
	state, err := json.Marshal(final)
	if err != nil {
		return fmt.Errorf("failed to marshal final state: %w", err)
	}
	winner := final.WinnerID

	err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, status, turn_limit, winner_id, final_state, end_time)
			VALUES ($1, 'completed', $2, $3, $4, NOW())
			ON CONFLICT (id) DO UPDATE
			SET status = 'completed', turn_limit = $2, winner_id = $3, final_state = $4, end_time = NOW()
		`
		if _, e := tx.Exec(ctx, upsertGame, final.GameID, final.TurnLimit, winner, state); e != nil {
			return e
		}

		for _, seat := range final.Seats {
			didWin := winner != nil && *winner == seat.PlayerID
			q := `
				INSERT INTO game_results (game_id, player_id, player_name, is_bot, score, did_win)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (game_id, player_id)
				DO UPDATE SET score = $5, did_win = $6
			`
			if _, e := tx.Exec(ctx, q, final.GameID, seat.PlayerID, seat.Name, seat.IsBot, seat.Score, didWin); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}
	return nil
}

// InsertActions stores a batch of action log entries in one transaction,
// creating the game row on first sight. A game_end entry completes the game.
func (r *Recorder) InsertActions(ctx context.Context, batch []models.GameAction) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batch {
			if err := insertActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %s/%d: %w", rec.GameID, rec.ActionIndex, err)
			}
		}
		return nil
	})
}

func insertActionTx(ctx context.Context, tx pgx.Tx, rec models.GameAction) error {
	upsertGameQ := `
		INSERT INTO games (id, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertGameQ, rec.GameID); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	var actor *uuid.UUID
	if rec.ActorID != uuid.Nil {
		actor = &rec.ActorID
	}
	actionInsertQ := `
		INSERT INTO game_actions (game_id, action_index, actor_id, action_type, action_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id, action_index) DO NOTHING
	`
	_, err = tx.Exec(ctx, actionInsertQ,
		rec.GameID, rec.ActionIndex, actor, rec.ActionType, payload, time.UnixMilli(rec.Timestamp),
	)
	if err != nil {
		return err
	}

	if rec.ActionType == "game_end" {
		finalizeQ := `
			UPDATE games
			SET status = 'completed', end_time = COALESCE(end_time, NOW())
			WHERE id = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.GameID); err != nil {
			return err
		}
	}
	return nil
}

// MarkAbandoned flags a game that is still in progress as abandoned.
func (r *Recorder) MarkAbandoned(ctx context.Context, gameID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE games
			SET status = 'abandoned', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		_, e := tx.Exec(ctx, q, gameID)
		return e
	})
}
