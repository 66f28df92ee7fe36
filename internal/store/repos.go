package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/suspense/internal/models"
)

// DefaultTTL is how long an untouched session or player survives.
const DefaultTTL = 4 * time.Hour

// Sessions is the typed view of a Store for game sessions.
type Sessions struct {
	Store Store
	TTL   time.Duration
}

func (r *Sessions) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var s models.Session
	if err := r.Store.Get(ctx, id.String(), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes s and refreshes its expiry.
func (r *Sessions) Save(ctx context.Context, s *models.Session) error {
	return r.Store.Put(ctx, s, ttlOrDefault(r.TTL))
}

func (r *Sessions) Delete(ctx context.Context, id uuid.UUID) error {
	return r.Store.Delete(ctx, id.String())
}

// Players is the typed view of a Store for players.
type Players struct {
	Store Store
	TTL   time.Duration
}

func (r *Players) Get(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var p models.Player
	if err := r.Store.Get(ctx, id.String(), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Players) Save(ctx context.Context, p *models.Player) error {
	return r.Store.Put(ctx, p, ttlOrDefault(r.TTL))
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
