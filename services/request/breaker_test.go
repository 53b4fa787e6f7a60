package request

import (
	"testing"
	"time"
)

func TestBreakerSuppressesForOneMinute(t *testing.T) {
	b := NewBreaker()
	start := time.Now()
	now := start
	b.now = func() time.Time { return now }

	if b.Suppressed("tmdb") {
		t.Fatal("new breaker should not suppress")
	}

	b.RecordFailure("tmdb")
	if !b.Suppressed("tmdb") {
		t.Fatal("expected suppression right after failure")
	}

	now = start.Add(59 * time.Second)
	if !b.Suppressed("tmdb") {
		t.Fatal("expected suppression at 59s")
	}

	now = start.Add(61 * time.Second)
	if b.Suppressed("tmdb") {
		t.Fatal("expected suppression to lift after 60s")
	}
}

func TestBreakerFailureResetsWindow(t *testing.T) {
	b := NewBreaker()
	start := time.Now()
	now := start
	b.now = func() time.Time { return now }

	b.RecordFailure("trakt")
	now = start.Add(30 * time.Second)
	b.RecordFailure("trakt")

	// 89s after the first failure but only 59s after the second.
	now = start.Add(89 * time.Second)
	if !b.Suppressed("trakt") {
		t.Fatal("second failure should have extended suppression")
	}

	now = start.Add(91 * time.Second)
	if b.Suppressed("trakt") {
		t.Fatal("expected suppression to lift 60s after the last failure")
	}
}

func TestBreakerScopedPerUpstream(t *testing.T) {
	b := NewBreaker()
	b.RecordFailure("fanart")

	if !b.Suppressed("fanart") {
		t.Fatal("expected fanart suppressed")
	}
	if b.Suppressed("tmdb") {
		t.Fatal("tmdb should be unaffected by fanart failures")
	}
}
