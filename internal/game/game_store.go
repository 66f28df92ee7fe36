package game

import (
	"sync"

	"github.com/google/uuid"
)

// GameStore tracks the engines of games currently in progress.
type GameStore struct {
	mu    sync.Mutex
	games map[uuid.UUID]*Engine
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[uuid.UUID]*Engine),
	}
}

func (s *GameStore) AddGame(id uuid.UUID, e *Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[id] = e
}

func (s *GameStore) GetGame(id uuid.UUID) (*Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.games[id]
	return e, exists
}

func (s *GameStore) DeleteGame(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}

// Len is the number of games in progress.
func (s *GameStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}
