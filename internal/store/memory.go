package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
)

type memItem struct {
	data    []byte
	expires time.Time // zero => no expiry
}

// MemoryStore keeps encoded entities in a map. Expiry is evaluated lazily on read.
type MemoryStore struct {
	mu    sync.Mutex
	clock quartz.Clock
	items map[string]memItem
}

func NewMemoryStore(clock quartz.Clock) *MemoryStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &MemoryStore{
		clock: clock,
		items: make(map[string]memItem),
	}
}

func (m *MemoryStore) Put(_ context.Context, e Entity, ttl time.Duration) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	item := memItem{data: data}
	if ttl > 0 {
		item.expires = m.clock.Now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[e.EntityID()] = item
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string, into Entity) error {
	m.mu.Lock()
	item, ok := m.items[id]
	if ok && !item.expires.IsZero() && !m.clock.Now().Before(item.expires) {
		delete(m.items, id)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return decode(item.data, id, into)
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}
