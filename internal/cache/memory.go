package cache

import (
	"context"
	"sync"

	"salesflow/models"
)

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	snap models.Snapshot
	has  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, snap models.Snapshot) error {
	snap.Sales = append([]models.Sale(nil), snap.Sales...)
	m.mu.Lock()
	m.snap = snap
	m.has = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Latest(_ context.Context) (models.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := m.snap
	snap.Sales = append([]models.Sale(nil), m.snap.Sales...)
	return snap, m.has, nil
}

func (m *MemoryStore) Health(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
