package pricing

import (
	"context"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func waitForUpdate(t *testing.T, ch <-chan *PriceAnalysis) *PriceAnalysis {
	t.Helper()
	select {
	case analysis := <-ch:
		return analysis
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher update")
		return nil
	}
}

func TestWatcherRefreshesOnInputChange(t *testing.T) {
	from, to := testTokens()
	provider := &fakeQuoteProvider{quote: big.NewInt(1000_000000)}
	watcher := NewWatcher(NewAnalyzer(provider), newTestLogger())

	updates := make(chan *PriceAnalysis, 4)
	watcher.OnUpdate(func(a *PriceAnalysis) { updates <- a })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	watcher.SetInputs(&WatchInputs{FromToken: from, ToToken: to, FromAmount: "1"})

	analysis := waitForUpdate(t, updates)
	require.NotNil(t, analysis)
	assert.Equal(t, FeeTier500, analysis.OptimalFeeTier)
	assert.Equal(t, analysis, watcher.Current())
}

func TestWatcherClearsAnalysisOnFailure(t *testing.T) {
	from, to := testTokens()
	provider := &fakeQuoteProvider{quote: big.NewInt(1000_000000)}
	watcher := NewWatcher(NewAnalyzer(provider), newTestLogger())

	updates := make(chan *PriceAnalysis, 4)
	watcher.OnUpdate(func(a *PriceAnalysis) { updates <- a })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	watcher.SetInputs(&WatchInputs{FromToken: from, ToToken: to, FromAmount: "1"})
	require.NotNil(t, waitForUpdate(t, updates))

	// A bad amount makes the next refresh fail; the analysis must be cleared
	watcher.SetInputs(&WatchInputs{FromToken: from, ToToken: to, FromAmount: "bogus"})
	assert.Nil(t, waitForUpdate(t, updates))
	assert.Nil(t, watcher.Current())
}

func TestWatcherIgnoresIncompleteInputs(t *testing.T) {
	provider := &fakeQuoteProvider{quote: big.NewInt(1)}
	watcher := NewWatcher(NewAnalyzer(provider), newTestLogger())

	updates := make(chan *PriceAnalysis, 4)
	watcher.OnUpdate(func(a *PriceAnalysis) { updates <- a })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	from, _ := testTokens()
	watcher.SetInputs(&WatchInputs{FromToken: from, FromAmount: "1"}) // missing toToken

	assert.Nil(t, waitForUpdate(t, updates))
	assert.Equal(t, 0, provider.calls, "no oracle read for incomplete inputs")
}
