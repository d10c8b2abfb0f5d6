package security

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	DefaultLedgerFileName = ".commerce-swap-ledger.json"
)

// storedIntent is the on-disk fingerprint shape. Timestamps are kept as
// millisecond epochs matching the web client's local-storage format.
type storedIntent struct {
	FromToken string  `json:"fromToken"`
	ToToken   string  `json:"toToken"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
}

// ledgerDocument is the JSON structure for storage
type ledgerDocument struct {
	Requests []int64        `json:"enterprise_swap_requests"`
	Intents  []storedIntent `json:"enterprise_intents"`
}

// FileLedger persists the attempt ledger to a JSON file. The file is shared,
// advisory state: concurrent writers from other processes can race, which is
// acceptable because nothing authoritative depends on it.
type FileLedger struct {
	filePath string
	mu       sync.RWMutex
	doc      ledgerDocument
}

// NewFileLedger creates a file-backed ledger, loading any existing state
func NewFileLedger(filePath string) (*FileLedger, error) {
	if filePath == "" {
		// Default to home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultLedgerFileName)
	}

	ledger := &FileLedger{filePath: filePath}

	// Load existing state if the file exists
	if err := ledger.load(); err != nil {
		// A missing file is fine - it is created on first save
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load ledger: %w", err)
		}
	}

	return ledger, nil
}

// load reads the ledger document from the storage file
func (l *FileLedger) load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return err
	}

	var doc ledgerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal ledger: %w", err)
	}

	l.doc = doc
	return nil
}

// save writes the ledger document to the storage file (caller holds the lock)
func (l *FileLedger) save() error {
	data, err := json.MarshalIndent(l.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(l.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := l.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}

	if err := os.Rename(tempFile, l.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// RecordRequest appends a request timestamp, evicting the oldest beyond the cap
func (l *FileLedger) RecordRequest(at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.doc.Requests = append(l.doc.Requests, at.UnixMilli())
	if len(l.doc.Requests) > MaxRecentRequests {
		l.doc.Requests = l.doc.Requests[len(l.doc.Requests)-MaxRecentRequests:]
	}

	return l.save()
}

// RecentRequestCount counts recorded requests strictly newer than cutoff
func (l *FileLedger) RecentRequestCount(cutoff time.Time) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cutoffMs := cutoff.UnixMilli()
	count := 0
	for _, ms := range l.doc.Requests {
		if ms > cutoffMs {
			count++
		}
	}
	return count, nil
}

// FindSimilarIntent scans the recorded fingerprints for a near-duplicate
func (l *FileLedger) FindSimilarIntent(fp IntentFingerprint, tolerance float64, window time.Duration) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, stored := range l.doc.Intents {
		recorded := IntentFingerprint{
			FromToken: stored.FromToken,
			ToToken:   stored.ToToken,
			Amount:    stored.Amount,
			Timestamp: time.UnixMilli(stored.Timestamp),
		}
		if fp.Similar(recorded, tolerance, window) {
			return true, nil
		}
	}
	return false, nil
}

// RecordIntent appends an intent fingerprint, evicting the oldest beyond the cap
func (l *FileLedger) RecordIntent(fp IntentFingerprint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.doc.Intents = append(l.doc.Intents, storedIntent{
		FromToken: fp.FromToken,
		ToToken:   fp.ToToken,
		Amount:    fp.Amount,
		Timestamp: fp.Timestamp.UnixMilli(),
	})
	if len(l.doc.Intents) > MaxRecentIntents {
		l.doc.Intents = l.doc.Intents[len(l.doc.Intents)-MaxRecentIntents:]
	}

	return l.save()
}

// GetFilePath returns the storage file path
func (l *FileLedger) GetFilePath() string {
	return l.filePath
}
