package stubs

import (
	"context"
	"sync"

	"bookstats/internal/models"
	"bookstats/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu       sync.RWMutex
	snapshot *storage.Snapshot
	saves    int
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{}
}

// Initialize does nothing for mock DB
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// SaveSnapshot stores a deep copy of the snapshot
func (m *MockDB) SaveSnapshot(ctx context.Context, snap *storage.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot = clone(snap)
	m.saves++
	return nil
}

// LoadSnapshot returns a copy of the stored snapshot
func (m *MockDB) LoadSnapshot(ctx context.Context) (*storage.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snapshot == nil {
		return nil, storage.ErrNoSnapshot
	}
	return clone(m.snapshot), nil
}

// Saves returns how many times SaveSnapshot was called
func (m *MockDB) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}

func clone(s *storage.Snapshot) *storage.Snapshot {
	c := *s
	c.Records = make([]models.SalesRecord, len(s.Records))
	copy(c.Records, s.Records)
	for i, r := range c.Records {
		if r.Collana != nil {
			c.Records[i].Collana = models.StringPtr(*r.Collana)
		}
	}
	return &c
}
