package cache

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// setupSQLiteStore creates a sqlite store in a temp directory.
func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := setupSQLiteStore(t)

	require.NoError(t, store.Set("k1", []byte(`{"a":1}`), 14))

	value, writtenAt, ok := store.Get("k1")
	require.True(t, ok)
	require.Equal(t, []byte(`{"a":1}`), value)
	require.WithinDuration(t, time.Now(), writtenAt, 5*time.Second)
}

func TestSQLiteStoreMissingKey(t *testing.T) {
	store := setupSQLiteStore(t)

	_, _, ok := store.Get("absent")
	require.False(t, ok)
}

func TestSQLiteStoreOverwriteReplacesWholeValue(t *testing.T) {
	store := setupSQLiteStore(t)

	require.NoError(t, store.Set("k1", []byte(`{"a":1}`), 1))
	require.NoError(t, store.Set("k1", []byte(`{"b":2}`), 14))

	value, _, ok := store.Get("k1")
	require.True(t, ok)
	require.Equal(t, []byte(`{"b":2}`), value)
}

func TestSQLiteStoreExpiry(t *testing.T) {
	store := setupSQLiteStore(t)

	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Set("k1", []byte(`1`), 2))

	// One second inside the retention window.
	store.now = func() time.Time { return now.Add(2*24*time.Hour - time.Second) }
	_, _, ok := store.Get("k1")
	require.True(t, ok)

	// One second past it.
	store.now = func() time.Time { return now.Add(2*24*time.Hour + time.Second) }
	_, _, ok = store.Get("k1")
	require.False(t, ok)

	// The expired row was purged, not just masked.
	store.now = func() time.Time { return now }
	_, _, ok = store.Get("k1")
	require.False(t, ok)
}

func TestSQLiteStoreConcurrentWrites(t *testing.T) {
	store := setupSQLiteStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				require.NoError(t, store.Set("shared", []byte(`{"n":1}`), 1))
			}
		}()
	}
	wg.Wait()

	value, _, ok := store.Get("shared")
	require.True(t, ok)
	require.Equal(t, []byte(`{"n":1}`), value)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set("k1", []byte(`1`), 1))

	// Still fresh an hour later.
	store.now = func() time.Time { return now.Add(time.Hour) }
	_, _, ok := store.Get("k1")
	require.True(t, ok)

	// A 1 day ttl read 25 hours after the write is gone, regardless of the
	// backing cache's own wall-clock expiry.
	store.now = func() time.Time { return now.Add(25 * time.Hour) }
	_, _, ok = store.Get("k1")
	require.False(t, ok)
}

func TestTieredStoreReadThrough(t *testing.T) {
	persistent := setupSQLiteStore(t)
	tiered := NewTieredStore(persistent)

	// Write through the persistent tier only, as an earlier process would have.
	require.NoError(t, persistent.Set("k1", []byte(`"v"`), 14))

	value, _, ok := tiered.Get("k1")
	require.True(t, ok)
	require.Equal(t, []byte(`"v"`), value)

	// Served from memory even if the persistent tier loses the row.
	_, err := persistent.db.Exec(`DELETE FROM cache`)
	require.NoError(t, err)
	value, _, ok = tiered.Get("k1")
	require.True(t, ok)
	require.Equal(t, []byte(`"v"`), value)
}
