// Package cache provides the persistent key/value stores the request layer
// reads and writes cached upstream responses through.
package cache

import "time"

// Store is a key/value store holding opaque JSON documents together with the
// time they were written. Implementations must be safe for concurrent use and
// must replace values wholesale; partial updates are never performed.
type Store interface {
	// Get returns the stored value and its write time. ok is false when the
	// key is absent or the stored entry has outlived its ttl.
	Get(key string) (value []byte, writtenAt time.Time, ok bool)
	// Set stores value under key with the given retention in days,
	// overwriting any previous entry.
	Set(key string, value []byte, ttlDays int) error
}

// ttlDuration converts a day count to a duration, treating non-positive
// counts as a single day so nothing is written already expired.
func ttlDuration(ttlDays int) time.Duration {
	if ttlDays < 1 {
		ttlDays = 1
	}
	return time.Duration(ttlDays) * 24 * time.Hour
}
