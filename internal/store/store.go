// Package store provides the keyed entity store that game sessions and
// players are kept in. Values are JSON documents tagged with their entity
// type; reading a key into the wrong type is reported as ErrNotFound.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key is absent, expired, or holds a different entity type.
var ErrNotFound = errors.New("entity not found")

// Entity is anything that can be stored under its own id.
type Entity interface {
	EntityType() string
	EntityID() string
}

// Store is a last-write-wins keyed store.
type Store interface {
	Put(ctx context.Context, e Entity, ttl time.Duration) error
	Get(ctx context.Context, id string, into Entity) error
	Delete(ctx context.Context, id string) error
}

type envelope struct {
	EntityType string          `json:"entity_type"`
	Data       json.RawMessage `json:"data"`
}

func encode(e Entity) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s %s: %w", e.EntityType(), e.EntityID(), err)
	}
	return json.Marshal(envelope{EntityType: e.EntityType(), Data: data})
}

func decode(raw []byte, id string, into Entity) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("unmarshal envelope for %s: %w", id, err)
	}
	if env.EntityType != into.EntityType() {
		return fmt.Errorf("%w: %s is a %q, not a %q", ErrNotFound, id, env.EntityType, into.EntityType())
	}
	if err := json.Unmarshal(env.Data, into); err != nil {
		return fmt.Errorf("unmarshal %s %s: %w", env.EntityType, id, err)
	}
	return nil
}
