package store

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-memory WatermarkStore.
type MemoryStore struct {
	mu     sync.RWMutex
	marks  map[string]int64
	closed bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{marks: make(map[string]int64)}
}

// Load returns the stored sequence for key.
func (m *MemoryStore) Load(ctx context.Context, key string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, false, ErrStoreClosed
	}
	seq, ok := m.marks[key]
	return seq, ok, nil
}

// Save stores seq for key.
func (m *MemoryStore) Save(ctx context.Context, key string, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.marks[key] = seq
	return nil
}

// SaveAll stores several watermarks.
func (m *MemoryStore) SaveAll(ctx context.Context, marks map[string]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	maps.Copy(m.marks, marks)
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.marks, key)
	return nil
}

// Close marks the store closed and drops its contents.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.marks = nil
	return nil
}

// Count returns the number of stored watermarks.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.marks)
}
