package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces entity keys in a shared Redis.
const DefaultKeyPrefix = "suspense:"

// RedisStore keeps entities as JSON strings with a per-key TTL.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Put(ctx context.Context, e Entity, ttl time.Duration) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(e.EntityID()), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", e.EntityID(), err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string, into Entity) error {
	raw, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", id, err)
	}
	return decode(raw, id, into)
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", id, err)
	}
	return nil
}
