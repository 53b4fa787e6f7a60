package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryEntry struct {
	value     []byte
	writtenAt time.Time
	ttlDays   int
}

// MemoryStore is an in-process Store. It fronts the sqlite store in a
// TieredStore and stands alone in tests.
type MemoryStore struct {
	entries *gocache.Cache
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: gocache.New(gocache.NoExpiration, 10*time.Minute),
		now:     time.Now,
	}
}

// Get implements Store.
func (m *MemoryStore) Get(key string) ([]byte, time.Time, bool) {
	v, ok := m.entries.Get(key)
	if !ok {
		return nil, time.Time{}, false
	}
	entry := v.(memoryEntry)
	if m.now().Sub(entry.writtenAt) > ttlDuration(entry.ttlDays) {
		m.entries.Delete(key)
		return nil, time.Time{}, false
	}
	return entry.value, entry.writtenAt, true
}

// Set implements Store. go-cache's own expiry doubles as garbage collection;
// the authoritative check in Get uses the recorded write time.
func (m *MemoryStore) Set(key string, value []byte, ttlDays int) error {
	m.entries.Set(key, memoryEntry{value: value, writtenAt: m.now(), ttlDays: ttlDays}, ttlDuration(ttlDays))
	return nil
}

// TieredStore layers a fast in-memory store over a persistent one. Reads fall
// through to the persistent store and prime the memory tier; writes go to
// both.
type TieredStore struct {
	memory     *MemoryStore
	persistent Store
}

// NewTieredStore wraps persistent with a fresh memory tier.
func NewTieredStore(persistent Store) *TieredStore {
	return &TieredStore{memory: NewMemoryStore(), persistent: persistent}
}

// Get implements Store.
func (t *TieredStore) Get(key string) ([]byte, time.Time, bool) {
	if value, writtenAt, ok := t.memory.Get(key); ok {
		return value, writtenAt, true
	}
	// Prime the memory tier for a day at most; the persistent tier remains
	// the authority on longer retention.
	value, writtenAt, ok := t.persistent.Get(key)
	if ok && time.Since(writtenAt) < 24*time.Hour {
		t.memory.entries.Set(key, memoryEntry{value: value, writtenAt: writtenAt, ttlDays: 1}, ttlDuration(1))
	}
	return value, writtenAt, ok
}

// Set implements Store.
func (t *TieredStore) Set(key string, value []byte, ttlDays int) error {
	if err := t.memory.Set(key, value, ttlDays); err != nil {
		return err
	}
	return t.persistent.Set(key, value, ttlDays)
}
