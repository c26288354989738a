package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, ok := s.Get("absent")
	assert.False(t, ok)

	s.Set("k", json.RawMessage(`{"a":1}`))
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(got))

	s.Set("k", json.RawMessage(`{"a":2}`))
	got, _ = s.Get("k")
	assert.JSONEq(t, `{"a":2}`, string(got), "set supersedes the previous value")

	s.Remove("k")
	_, ok = s.Get("k")
	assert.False(t, ok)

	// Removing an absent key is a no-op.
	s.Remove("k")
}

func TestMemoryStoreCopiesValueOnSet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	buf := json.RawMessage(`"original"`)
	s.Set("k", buf)
	copy(buf, []byte(`"mutated!"`))

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, `"original"`, string(got))
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.db")

	s, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	s.Set("capability/service_spec", json.RawMessage(`{"paths":{}}`))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.Get("capability/service_spec")
	require.True(t, ok, "fact must survive a restart")
	assert.JSONEq(t, `{"paths":{}}`, string(got))
}

func TestSQLiteStoreRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.db")
	s, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	s.Set("k", json.RawMessage(`1`))
	s.Remove("k")
	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestOpenFallsBackToMemoryOnBadPath(t *testing.T) {
	// Occupy the would-be parent directory with a plain file so the store
	// cannot create it.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	s := Open(filepath.Join(blocker, "sub", "facts.db"), zerolog.Nop())
	defer s.Close()

	_, isMemory := s.(*MemoryStore)
	assert.True(t, isMemory, "unavailable database must degrade to memory")

	// Degraded store still works for the life of the process.
	s.Set("k", json.RawMessage(`true`))
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, `true`, string(got))
}

func TestJSONHelpers(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	type fact struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	SetJSON(s, "f", fact{Name: "widgets", Count: 3})
	var got fact
	require.True(t, GetJSON(s, "f", &got))
	assert.Equal(t, fact{Name: "widgets", Count: 3}, got)

	var missing fact
	assert.False(t, GetJSON(s, "nope", &missing))

	s.Set("garbage", json.RawMessage(`{not json`))
	var bad fact
	assert.False(t, GetJSON(s, "garbage", &bad), "malformed persisted data reads as absent")
}
