package db

import (
	"context"
	"sync"

	"coin_economy/internal/domain"
)

// MemoryStore keeps everything in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	balances map[string]int64
	history  map[string][]domain.HistoryEntry
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]int64),
		history:  make(map[string][]domain.HistoryEntry),
	}
}

func (m *MemoryStore) Load(_ context.Context, accountID string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[accountID]
	return b, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, accountID string, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountID] = balance
	return nil
}

func (m *MemoryStore) LoadHistory(_ context.Context, accountID string) ([]domain.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneHistory(m.history[accountID]), nil
}

func (m *MemoryStore) SaveHistory(_ context.Context, accountID string, entries []domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[accountID] = cloneHistory(entries)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.balances, accountID)
	delete(m.history, accountID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
