// Package historian drains the game action log from Redis into Postgres and
// marks games abandoned once their log goes quiet.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrMalformedAction is returned by a Queue for an entry that is not a game action.
var ErrMalformedAction = errors.New("malformed action record")

// Queue yields action log entries. ok is false when nothing arrived within timeout.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (action models.GameAction, ok bool, err error)
}

// Sink persists what the historian collects.
type Sink interface {
	InsertActions(ctx context.Context, batch []models.GameAction) error
	MarkAbandoned(ctx context.Context, gameID uuid.UUID) error
}

// RedisQueue pops from the list the game server pushes to.
type RedisQueue struct {
	rdb  *redis.Client
	name string
}

func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	return &RedisQueue{rdb: rdb, name: name}
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (models.GameAction, bool, error) {
	var rec models.GameAction
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the queue name and res[1] the payload
	if len(res) < 2 {
		return rec, false, nil
	}
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return rec, false, fmt.Errorf("%w: %w", ErrMalformedAction, err)
	}
	return rec, true, nil
}

type Config struct {
	BatchSize     int
	FlushDelay    time.Duration
	Inactivity    time.Duration // duration until a game is marked abandoned
	SweepInterval time.Duration
	PopTimeout    time.Duration
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.FlushDelay <= 0 {
		c.FlushDelay = 500 * time.Millisecond
	}
	if c.Inactivity <= 0 {
		c.Inactivity = 10 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = 3 * time.Second
	}
}

// Service batches action records into the sink.
type Service struct {
	queue  Queue
	sink   Sink
	clock  quartz.Clock
	logger logrus.FieldLogger
	cfg    Config

	mu           sync.Mutex
	batch        []models.GameAction
	lastActivity map[uuid.UUID]time.Time
}

func NewService(queue Queue, sink Sink, clock quartz.Clock, logger logrus.FieldLogger, cfg Config) *Service {
	cfg.defaults()
	return &Service{
		queue:        queue,
		sink:         sink,
		clock:        clock,
		logger:       logger,
		cfg:          cfg,
		batch:        make([]models.GameAction, 0, cfg.BatchSize),
		lastActivity: make(map[uuid.UUID]time.Time),
	}
}

// Run reads, flushes and sweeps until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("historian started")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.flushLoop(gctx) })
	g.Go(func() error { return s.sweepLoop(gctx) })
	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ferr := s.Flush(flushCtx); ferr != nil {
		err = errors.Join(err, ferr)
	}
	s.logger.Info("historian stopped")
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		rec, ok, err := s.queue.Pop(ctx, s.cfg.PopTimeout)
		if ok {
			if full := s.record(rec); full != nil {
				_ = s.insert(ctx, full)
			}
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrMalformedAction) {
			s.logger.WithError(err).Warn("dropping action record")
			continue
		}
		if err != nil {
			s.logger.WithError(err).Error("queue pop failed")
			if err := s.backoff(ctx); err != nil {
				return nil
			}
		}
	}
}

func (s *Service) backoff(ctx context.Context) error {
	t := s.clock.NewTimer(time.Second, "historian", "backoff")
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// record adds rec to the batch and returns the batch when it is full.
func (s *Service) record(rec models.GameAction) []models.GameAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ActionType == "game_end" {
		delete(s.lastActivity, rec.GameID)
	} else {
		s.lastActivity[rec.GameID] = s.clock.Now()
	}
	s.batch = append(s.batch, rec)
	if len(s.batch) < s.cfg.BatchSize {
		return nil
	}
	return s.takeBatch()
}

func (s *Service) takeBatch() []models.GameAction {
	if len(s.batch) == 0 {
		return nil
	}
	out := s.batch
	s.batch = make([]models.GameAction, 0, s.cfg.BatchSize)
	return out
}

func (s *Service) flushLoop(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.FlushDelay, "historian", "flush")
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = s.Flush(ctx)
		}
	}
}

// Flush writes the pending batch to the sink.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.takeBatch()
	s.mu.Unlock()
	if batch == nil {
		return nil
	}
	return s.insert(ctx, batch)
}

func (s *Service) insert(ctx context.Context, batch []models.GameAction) error {
	if err := s.sink.InsertActions(ctx, batch); err != nil {
		s.logger.WithError(err).WithField("count", len(batch)).Error("failed to flush actions")
		return err
	}
	s.logger.WithField("count", len(batch)).Debug("flushed actions")
	return nil
}

func (s *Service) sweepLoop(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.SweepInterval, "historian", "sweep")
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep marks every game quiet for longer than the inactivity threshold as abandoned.
func (s *Service) Sweep(ctx context.Context) {
	now := s.clock.Now()
	var stale []uuid.UUID
	s.mu.Lock()
	for id, last := range s.lastActivity {
		if now.Sub(last) > s.cfg.Inactivity {
			stale = append(stale, id)
			delete(s.lastActivity, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		if err := s.sink.MarkAbandoned(ctx, id); err != nil {
			s.logger.WithError(err).WithField("game_id", id).Error("failed to mark game abandoned")
			continue
		}
		s.logger.WithField("game_id", id).Info("marked game abandoned due to inactivity")
	}
}
