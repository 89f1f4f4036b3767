package kvstore

import (
	"context"
	"sync"
)

// MemoryStore keeps values in process memory. It is used for tests and for
// deployments that accept losing caches on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	store map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{store: make(map[string]string)}
}

// Get retrieves a value.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.store[key]
	return value, ok, nil
}

// Set overwrites a value.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value
	return nil
}

// Remove deletes a value. Removing a missing key is not an error.
func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
