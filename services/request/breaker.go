// Package request implements the resilient HTTP layer shared by every
// upstream client: a per-upstream failure breaker, a classifying fetch
// client, and a cache-aware fetcher the resolvers call.
package request

import (
	"sync"
	"time"
)

// suppressWindow is how long calls to an upstream stay suppressed after a
// failure. Any further failure restarts the window.
const suppressWindow = 60 * time.Second

// Breaker suppresses calls to upstreams that recently failed. One Breaker is
// shared by every client in the process so a failure seen by one resolution
// stops retries from all of them. It keeps a single last-failure timestamp
// per upstream, not a counter; suppression lifts purely by elapsed time.
type Breaker struct {
	mu          sync.Mutex
	lastFailure map[string]time.Time
	now         func() time.Time
}

// NewBreaker creates an empty breaker.
func NewBreaker() *Breaker {
	return &Breaker{
		lastFailure: make(map[string]time.Time),
		now:         time.Now,
	}
}

// Suppressed reports whether calls to the named upstream are currently
// suppressed.
func (b *Breaker) Suppressed(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	last, ok := b.lastFailure[name]
	if !ok {
		return false
	}
	if b.now().Sub(last) >= suppressWindow {
		delete(b.lastFailure, name)
		return false
	}
	return true
}

// RecordFailure marks the named upstream as failing now, restarting its
// suppression window.
func (b *Breaker) RecordFailure(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailure[name] = b.now()
}
