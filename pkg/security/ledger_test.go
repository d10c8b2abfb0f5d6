package security

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerRequestCap(t *testing.T) {
	ledger := NewMemoryLedger()
	base := time.Now()

	for i := 0; i < MaxRecentRequests+10; i++ {
		require.NoError(t, ledger.RecordRequest(base.Add(time.Duration(i)*time.Second)))
	}

	count, err := ledger.RecentRequestCount(base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, MaxRecentRequests, count, "only the most recent entries survive")
}

func TestMemoryLedgerIntentCap(t *testing.T) {
	ledger := NewMemoryLedger()
	base := time.Now()

	for i := 0; i < MaxRecentIntents+5; i++ {
		require.NoError(t, ledger.RecordIntent(IntentFingerprint{
			FromToken: "a",
			ToToken:   "b",
			Amount:    float64(i + 1),
			Timestamp: base,
		}))
	}
	assert.Len(t, ledger.intents, MaxRecentIntents)

	// The oldest entries were evicted
	found, err := ledger.FindSimilarIntent(IntentFingerprint{
		FromToken: "a", ToToken: "b", Amount: 1, Timestamp: base,
	}, 0.001, time.Minute)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFingerprintSimilar(t *testing.T) {
	base := time.Now()
	fp := IntentFingerprint{FromToken: "a", ToToken: "b", Amount: 100, Timestamp: base}

	within := IntentFingerprint{FromToken: "a", ToToken: "b", Amount: 100.9, Timestamp: base.Add(-10 * time.Second)}
	assert.True(t, fp.Similar(within, 0.01, 30*time.Second))

	tooOld := IntentFingerprint{FromToken: "a", ToToken: "b", Amount: 100, Timestamp: base.Add(-31 * time.Second)}
	assert.False(t, fp.Similar(tooOld, 0.01, 30*time.Second))

	wrongPair := IntentFingerprint{FromToken: "a", ToToken: "c", Amount: 100, Timestamp: base}
	assert.False(t, fp.Similar(wrongPair, 0.01, 30*time.Second))

	tooFar := IntentFingerprint{FromToken: "a", ToToken: "b", Amount: 110, Timestamp: base}
	assert.False(t, fp.Similar(tooFar, 0.01, 30*time.Second))
}

func TestFileLedgerPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	now := time.Now()

	first, err := NewFileLedger(path)
	require.NoError(t, err)
	require.NoError(t, first.RecordRequest(now))
	require.NoError(t, first.RecordIntent(IntentFingerprint{
		FromToken: "weth", ToToken: "usdc", Amount: 1.5, Timestamp: now,
	}))

	second, err := NewFileLedger(path)
	require.NoError(t, err)

	count, err := second.RecentRequestCount(now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	found, err := second.FindSimilarIntent(IntentFingerprint{
		FromToken: "weth", ToToken: "usdc", Amount: 1.5, Timestamp: now,
	}, 0.01, time.Minute)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestFileLedgerDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	now := time.UnixMilli(1_700_000_000_000)

	ledger, err := NewFileLedger(path)
	require.NoError(t, err)
	require.NoError(t, ledger.RecordRequest(now))
	require.NoError(t, ledger.RecordIntent(IntentFingerprint{
		FromToken: "weth", ToToken: "usdc", Amount: 2, Timestamp: now,
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))

	// The document keeps the web client's storage keys and millisecond epochs
	require.Contains(t, doc, "enterprise_swap_requests")
	require.Contains(t, doc, "enterprise_intents")

	var requests []int64
	require.NoError(t, json.Unmarshal(doc["enterprise_swap_requests"], &requests))
	assert.Equal(t, []int64{1_700_000_000_000}, requests)
}

func TestFileLedgerRequestCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	ledger, err := NewFileLedger(path)
	require.NoError(t, err)

	base := time.Now()
	for i := 0; i < MaxRecentRequests+7; i++ {
		require.NoError(t, ledger.RecordRequest(base.Add(time.Duration(i)*time.Millisecond)))
	}

	count, err := ledger.RecentRequestCount(base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, MaxRecentRequests, count)
}
