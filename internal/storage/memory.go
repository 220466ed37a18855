package storage

import (
	"context"
	"sync"

	"payouts/internal/core"
)

// MemoryStore keeps the record in process memory. Nothing survives a restart;
// it backs STORE_BACKEND=memory and tests.
type MemoryStore struct {
	mu    sync.Mutex
	state *core.LedgerState
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (core.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return core.LedgerState{}, ErrNotFound
	}
	return s.state.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, state core.LedgerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := state.Clone()
	s.state = &c
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Close() error {
	return nil
}
