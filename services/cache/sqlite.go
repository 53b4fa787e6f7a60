package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/avast/retry-go/v4"
	sqlite3 "github.com/mattn/go-sqlite3"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	written_at INTEGER NOT NULL,
	ttl_days   INTEGER NOT NULL
);
`

// SQLiteStore is a Store backed by a single sqlite table. Writes replace the
// whole row, so concurrent refreshes of the same key can never interleave
// partial values.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the cache database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements Store. Expired rows are treated as absent and removed.
func (s *SQLiteStore) Get(key string) ([]byte, time.Time, bool) {
	var (
		value   []byte
		written int64
		ttlDays int
	)
	row := s.db.QueryRow(`SELECT value, written_at, ttl_days FROM cache WHERE key = ?`, key)
	if err := row.Scan(&value, &written, &ttlDays); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("[cache] read %q: %v", key, err)
		}
		return nil, time.Time{}, false
	}
	writtenAt := time.Unix(written, 0)
	if s.now().Sub(writtenAt) > ttlDuration(ttlDays) {
		if _, err := s.db.Exec(`DELETE FROM cache WHERE key = ?`, key); err != nil {
			log.Printf("[cache] purge %q: %v", key, err)
		}
		return nil, time.Time{}, false
	}
	return value, writtenAt, true
}

// Set implements Store. Writes retry briefly when another resolution holds
// the sqlite write lock.
func (s *SQLiteStore) Set(key string, value []byte, ttlDays int) error {
	if ttlDays < 1 {
		ttlDays = 1
	}
	return retry.Do(
		func() error {
			_, err := s.db.Exec(
				`INSERT OR REPLACE INTO cache (key, value, written_at, ttl_days) VALUES (?, ?, ?, ?)`,
				key, value, s.now().Unix(), ttlDays)
			return err
		},
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.RetryIf(func(err error) bool {
			var serr sqlite3.Error
			return errors.As(err, &serr) && (serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked)
		}),
		retry.LastErrorOnly(true),
	)
}
