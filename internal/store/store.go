// Package store provides the local fallback store used to cache the
// last-known-good value of remote-derived facts across process restarts.
package store

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Store is a small namespaced key-value space. All operations are synchronous
// and never fail outward: an unavailable backing store degrades to an
// in-memory, process-lifetime-only fallback.
type Store interface {
	// Get returns the value for key, or false if absent.
	Get(key string) (json.RawMessage, bool)
	// Set stores value under key, superseding any previous value.
	Set(key string, value json.RawMessage)
	// Remove deletes key. Removing an absent key is a no-op.
	Remove(key string)
	// Close releases backing resources.
	Close() error
}

// Open returns a persistent store at path, or an in-memory store if the
// backing database cannot be opened. Callers cannot tell the difference
// except via the log line emitted here.
func Open(path string, logger zerolog.Logger) Store {
	s, err := NewSQLiteStore(path, logger)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).
			Msg("Fallback store unavailable, using in-memory store")
		return NewMemoryStore()
	}
	return s
}

// SetJSON marshals value and stores it under key. Marshal failures are
// swallowed; a fact that cannot be serialized is simply not persisted.
func SetJSON(s Store, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.Set(key, data)
}

// GetJSON reads key and unmarshals it into target, reporting whether a
// well-formed value was present.
func GetJSON(s Store, key string, target interface{}) bool {
	data, ok := s.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, target) == nil
}
