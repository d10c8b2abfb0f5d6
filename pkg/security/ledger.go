package security

import (
	"math"
	"sync"
	"time"
)

const (
	// Rolling window caps. Only the most recent entries are retained.
	MaxRecentRequests = 20
	MaxRecentIntents  = 50
)

// IntentFingerprint identifies a swap attempt for duplicate detection
type IntentFingerprint struct {
	FromToken string
	ToToken   string
	Amount    float64
	Timestamp time.Time
}

// Similar reports whether another fingerprint is a near-duplicate of this
// one: same token pair, amount within the tolerance fraction, and submitted
// within the window.
func (fp IntentFingerprint) Similar(other IntentFingerprint, tolerance float64, window time.Duration) bool {
	if fp.FromToken != other.FromToken || fp.ToToken != other.ToToken {
		return false
	}
	if other.Amount == 0 {
		return fp.Amount == 0
	}
	if math.Abs(fp.Amount-other.Amount)/math.Abs(other.Amount) > tolerance {
		return false
	}
	delta := fp.Timestamp.Sub(other.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return delta <= window
}

// AttemptLedger records swap attempts for the advisory security checks. It is
// an injected capability so the CLI can persist it to disk while tests use an
// in-memory store, and a hardened deployment can move it server-side.
type AttemptLedger interface {
	// RecordRequest appends a request timestamp to the rolling window
	RecordRequest(at time.Time) error
	// RecentRequestCount returns how many recorded requests are newer than cutoff
	RecentRequestCount(cutoff time.Time) (int, error)
	// FindSimilarIntent reports whether a near-duplicate intent was recorded within the window
	FindSimilarIntent(fp IntentFingerprint, tolerance float64, window time.Duration) (bool, error)
	// RecordIntent appends an intent fingerprint to the rolling window
	RecordIntent(fp IntentFingerprint) error
}

// MemoryLedger is an in-memory AttemptLedger for tests and ephemeral runs
type MemoryLedger struct {
	mu       sync.Mutex
	requests []time.Time
	intents  []IntentFingerprint
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// RecordRequest appends a request timestamp, evicting the oldest beyond the cap
func (l *MemoryLedger) RecordRequest(at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.requests = append(l.requests, at)
	if len(l.requests) > MaxRecentRequests {
		l.requests = l.requests[len(l.requests)-MaxRecentRequests:]
	}
	return nil
}

// RecentRequestCount counts recorded requests strictly newer than cutoff
func (l *MemoryLedger) RecentRequestCount(cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, at := range l.requests {
		if at.After(cutoff) {
			count++
		}
	}
	return count, nil
}

// FindSimilarIntent scans the recorded fingerprints for a near-duplicate
func (l *MemoryLedger) FindSimilarIntent(fp IntentFingerprint, tolerance float64, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, recorded := range l.intents {
		if fp.Similar(recorded, tolerance, window) {
			return true, nil
		}
	}
	return false, nil
}

// RecordIntent appends an intent fingerprint, evicting the oldest beyond the cap
func (l *MemoryLedger) RecordIntent(fp IntentFingerprint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.intents = append(l.intents, fp)
	if len(l.intents) > MaxRecentIntents {
		l.intents = l.intents[len(l.intents)-MaxRecentIntents:]
	}
	return nil
}
