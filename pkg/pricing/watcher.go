package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"commerce-swap/pkg/types"
)

const (
	DefaultRefreshInterval = 30 * time.Second // Re-quote every 30 seconds
	MinRefreshInterval     = 5 * time.Second  // Minimum interval to avoid hammering the RPC
)

// WatchInputs is the token pair and amount currently under analysis
type WatchInputs struct {
	FromToken  *types.TokenInfo
	ToToken    *types.TokenInfo
	FromAmount string
}

func (in *WatchInputs) valid() bool {
	return in != nil && in.FromToken != nil && in.ToToken != nil && in.FromAmount != ""
}

// Watcher keeps a price analysis fresh: it re-analyzes immediately whenever
// the inputs change and on a fixed interval while the inputs remain valid.
// When an analysis fails the current analysis is cleared and the error logged;
// observers see a nil analysis until a refresh succeeds.
type Watcher struct {
	analyzer *Analyzer
	logger   logrus.FieldLogger
	interval time.Duration

	mu       sync.RWMutex
	inputs   *WatchInputs
	current  *PriceAnalysis
	onUpdate func(*PriceAnalysis)
	running  bool
	stopChan chan struct{}
	kick     chan struct{}
}

// NewWatcher creates a watcher around the given analyzer
func NewWatcher(analyzer *Analyzer, logger logrus.FieldLogger) *Watcher {
	return &Watcher{
		analyzer: analyzer,
		logger:   logger,
		interval: DefaultRefreshInterval,
		stopChan: make(chan struct{}),
		kick:     make(chan struct{}, 1),
	}
}

// SetRefreshInterval sets the periodic refresh interval
func (w *Watcher) SetRefreshInterval(interval time.Duration) {
	if interval < MinRefreshInterval {
		interval = MinRefreshInterval
	}
	w.interval = interval
}

// OnUpdate registers a callback invoked after every refresh, including
// failed ones (with a nil analysis)
func (w *Watcher) OnUpdate(fn func(*PriceAnalysis)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onUpdate = fn
}

// SetInputs replaces the watched inputs and triggers an immediate refresh
func (w *Watcher) SetInputs(inputs *WatchInputs) {
	w.mu.Lock()
	w.inputs = inputs
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Current returns the latest successful analysis, or nil
func (w *Watcher) Current() *PriceAnalysis {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins the refresh loop. It returns immediately; refreshes run in a
// background goroutine until Stop is called or the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.loop(ctx)
}

// Stop halts the refresh loop
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopChan)
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-w.kick:
			w.refresh(ctx)
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *Watcher) refresh(ctx context.Context) {
	w.mu.RLock()
	inputs := w.inputs
	w.mu.RUnlock()

	if !inputs.valid() {
		w.publish(nil)
		return
	}

	analysis, err := w.analyzer.Analyze(ctx, inputs.FromToken, inputs.ToToken, inputs.FromAmount)
	if err != nil {
		w.logger.WithError(err).WithFields(logrus.Fields{
			"fromToken": inputs.FromToken.Symbol,
			"toToken":   inputs.ToToken.Symbol,
		}).Error("price analysis failed")
		w.publish(nil)
		return
	}

	w.publish(analysis)
}

func (w *Watcher) publish(analysis *PriceAnalysis) {
	w.mu.Lock()
	w.current = analysis
	fn := w.onUpdate
	w.mu.Unlock()

	if fn != nil {
		fn(analysis)
	}
}
