package store

import (
	"encoding/json"
	"sync"
)

// MemoryStore implements Store with a process-lifetime map. It backs the
// degraded mode when the persistent store cannot be opened, and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	facts map[string]json.RawMessage
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		facts: make(map[string]json.RawMessage),
	}
}

// Get returns the value for key, or false if absent.
func (s *MemoryStore) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.facts[key]
	return value, ok
}

// Set stores value under key.
func (s *MemoryStore) Set(key string, value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make(json.RawMessage, len(value))
	copy(buf, value)
	s.facts[key] = buf
}

// Remove deletes key.
func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.facts, key)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
