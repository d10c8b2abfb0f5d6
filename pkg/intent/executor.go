package intent

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"commerce-swap/pkg/types"
)

const (
	DefaultSignaturePollInterval = 2 * time.Second
	DefaultSignaturePollAttempts = 30
)

// User-facing failure messages for the fixed error cases
const (
	ExtractIntentIDMessage  = "Failed to extract intent ID"
	SignatureTimeoutMessage = "Signature timeout - backend did not provide signature"
)

// SignatureStatus is the backend's answer to a signature-status query
type SignatureStatus struct {
	IsSigned  bool   `json:"isSigned"`
	Signature string `json:"signature,omitempty"`
}

// SignatureSource answers signature-status queries for an intent
type SignatureSource interface {
	SignatureStatus(ctx context.Context, intentID, intentHash string) (*SignatureStatus, error)
}

// SignatureWait is the typed outcome of the signature poll: exactly one of
// Signature, TimedOut, or Err is meaningful.
type SignatureWait struct {
	Signature string
	TimedOut  bool
	Err       error
}

// ExecuteRequest describes one swap attempt
type ExecuteRequest struct {
	FromToken   common.Address
	ToToken     common.Address
	Amount      string // display only; the intent itself carries no amount
	FromSymbol  string
	ToSymbol    string
	SlippagePct float64
}

// Executor drives a swap through the payment-intent lifecycle: create the
// intent on chain, extract the intent id from the receipt logs, poll the
// backend for a signature, then execute the signed intent. The two chain
// writes are strictly sequential; the signature poll is ticker-driven and
// cancellable through the context. Nothing is retried automatically - all
// retries are user-initiated after a reset.
type Executor struct {
	backend    Backend
	codec      *Codec
	signatures SignatureSource
	logger     logrus.FieldLogger

	pollInterval time.Duration
	pollAttempts int
	now          func() time.Time

	mu       sync.RWMutex
	state    ExecutionState
	onUpdate func(ExecutionState)

	// Serializes intent creation per payer so a user cannot double-submit
	userLocks sync.Map
}

// NewExecutor creates an executor over the given backend and signature source
func NewExecutor(backend Backend, codec *Codec, signatures SignatureSource, logger logrus.FieldLogger) *Executor {
	return &Executor{
		backend:      backend,
		codec:        codec,
		signatures:   signatures,
		logger:       logger,
		pollInterval: DefaultSignaturePollInterval,
		pollAttempts: DefaultSignaturePollAttempts,
		now:          time.Now,
		state:        NewExecutionState(),
	}
}

// SetPollPolicy overrides the signature poll spacing and attempt budget
func (e *Executor) SetPollPolicy(interval time.Duration, attempts int) {
	if interval > 0 {
		e.pollInterval = interval
	}
	if attempts > 0 {
		e.pollAttempts = attempts
	}
}

// SetClock overrides the time source, used by tests
func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

// OnUpdate registers a callback invoked on every state change with a copy of
// the new state. The callback runs on the executing goroutine and must not block.
func (e *Executor) OnUpdate(fn func(ExecutionState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUpdate = fn
}

// State returns a copy of the current execution state
func (e *Executor) State() ExecutionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Reset returns the state to idle defaults. It is only valid from a terminal
// state (completed or error) or idle; an in-flight swap cannot be reset out
// from under its goroutine.
func (e *Executor) Reset() error {
	e.mu.Lock()
	if e.state.Step != StepIdle && !e.state.Terminal() {
		e.mu.Unlock()
		return errors.New("cannot reset while a swap is in progress")
	}
	e.state = NewExecutionState()
	fn := e.onUpdate
	state := e.state
	e.mu.Unlock()

	if fn != nil {
		fn(state)
	}
	return nil
}

// Execute runs one swap attempt to completion. Cancelling the context aborts
// the attempt at the next suspension point and surfaces as the error state.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (*types.SwapReceipt, error) {
	user := e.backend.From()
	log := e.logger.WithFields(logrus.Fields{
		"attemptId": uuid.NewString(),
		"payer":     user.Hex(),
		"fromToken": req.FromSymbol,
		"toToken":   req.ToSymbol,
	})

	lock := e.userLock(user)
	if !lock.TryLock() {
		return nil, errors.New("another swap is already in progress for this address")
	}
	defer lock.Unlock()

	e.mu.Lock()
	if e.state.Step != StepIdle {
		e.mu.Unlock()
		return nil, errors.New("executor is not idle; reset before starting a new swap")
	}
	e.mu.Unlock()

	pi := NewSwapIntent(user, req.FromToken, req.SlippagePct, e.now())
	if err := pi.Validate(e.now()); err != nil {
		return nil, e.fail(log, err.Error(), false)
	}

	// Create the payment intent on chain
	e.advance(StepCreatingIntent, 10, "Creating payment intent...", 90)

	data, err := e.codec.PackCreateIntent(pi)
	if err != nil {
		return nil, e.fail(log, "Failed to encode payment intent", false)
	}

	createHash, err := e.backend.SubmitTransaction(ctx, e.codec.Address(), data)
	if err != nil {
		log.WithError(err).Error("create intent submission failed")
		return nil, e.fail(log, err.Error(), true)
	}
	e.update(func(s *ExecutionState) {
		s.Progress = 25
		s.Message = "Waiting for intent confirmation..."
		s.TxHash = createHash.Hex()
	})

	createReceipt, err := e.backend.WaitMined(ctx, createHash)
	if err != nil {
		log.WithError(err).Error("create intent confirmation failed")
		return nil, e.fail(log, err.Error(), true)
	}
	if createReceipt.Status != 1 {
		return nil, e.fail(log, "Intent creation transaction reverted", true)
	}

	// Parse the intent id out of the emitted logs; no retry on failure
	e.advance(StepExtractingIntentID, 40, "Extracting intent ID...", 70)

	intentID, err := e.codec.ExtractIntentID(createReceipt)
	if err != nil {
		log.WithError(err).Error("intent id extraction failed")
		return nil, e.fail(log, ExtractIntentIDMessage, true)
	}
	log = log.WithField("intentId", intentID.String())

	// Poll the backend until the intent is signed
	e.update(func(s *ExecutionState) {
		s.IntentID = intentID.String()
	})
	e.advance(StepWaitingSignature, 50, "Waiting for backend signature...", 60)

	wait := e.waitForSignature(ctx, log, intentID, user)
	switch {
	case wait.Err != nil:
		log.WithError(wait.Err).Error("signature wait aborted")
		return nil, e.fail(log, wait.Err.Error(), true)
	case wait.TimedOut:
		log.Error("signature wait timed out")
		return nil, e.fail(log, SignatureTimeoutMessage, true)
	}
	e.update(func(s *ExecutionState) {
		s.Signature = wait.Signature
	})

	// Execute the signed intent
	e.advance(StepExecutingSwap, 85, "Executing swap...", 15)

	execData, err := e.codec.PackExecuteIntent(intentID)
	if err != nil {
		return nil, e.fail(log, "Failed to encode swap execution", false)
	}

	execHash, err := e.backend.SubmitTransaction(ctx, e.codec.Address(), execData)
	if err != nil {
		log.WithError(err).Error("execute intent submission failed")
		return nil, e.fail(log, err.Error(), true)
	}
	e.update(func(s *ExecutionState) {
		s.Progress = 92
		s.Message = "Waiting for swap confirmation..."
		s.TxHash = execHash.Hex()
	})

	execReceipt, err := e.backend.WaitMined(ctx, execHash)
	if err != nil {
		log.WithError(err).Error("execute intent confirmation failed")
		return nil, e.fail(log, err.Error(), true)
	}
	if execReceipt.Status != 1 {
		return nil, e.fail(log, "Swap execution transaction reverted", true)
	}

	e.advance(StepCompleted, 100, "Swap completed successfully", 0)
	log.Info("swap completed")

	return &types.SwapReceipt{
		IntentID:     intentID.String(),
		CreateTxHash: createHash.Hex(),
		ExecTxHash:   execHash.Hex(),
		FromAmount:   req.Amount,
		FromToken:    req.FromSymbol,
		ToToken:      req.ToSymbol,
	}, nil
}

// waitForSignature polls the signature-status endpoint on a fixed interval
// with a bounded attempt budget. Poll errors are transient and consume an
// attempt; cancellation surfaces through Err.
func (e *Executor) waitForSignature(ctx context.Context, log logrus.FieldLogger, intentID *big.Int, payer common.Address) SignatureWait {
	hash := IntentHash(intentID, e.codec.Address(), payer)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= e.pollAttempts; attempt++ {
		status, err := e.signatures.SignatureStatus(ctx, intentID.String(), hash.Hex())
		if err != nil {
			log.WithError(err).WithField("attempt", attempt).Debug("signature poll failed")
		} else if status != nil && status.IsSigned && status.Signature != "" {
			return SignatureWait{Signature: status.Signature}
		}

		remaining := e.pollAttempts - attempt
		e.update(func(s *ExecutionState) {
			s.Progress = 50 + attempt*25/e.pollAttempts
			s.Message = fmt.Sprintf("Waiting for backend signature (attempt %d/%d)...", attempt, e.pollAttempts)
			s.EstimatedSecondsLeft = int(time.Duration(remaining) * e.pollInterval / time.Second)
		})

		if remaining == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return SignatureWait{Err: ctx.Err()}
		case <-ticker.C:
		}
	}

	return SignatureWait{TimedOut: true}
}

// advance moves the state machine forward. Steps only ever increase in rank;
// reaching the execution step without an intent id is a programming error.
func (e *Executor) advance(step Step, progress int, message string, etaSeconds int) {
	e.mu.Lock()
	if rank, ok := stepRank[step]; ok {
		if current, ok := stepRank[e.state.Step]; ok && rank < current {
			e.mu.Unlock()
			panic(fmt.Sprintf("intent: illegal step transition %s -> %s", e.state.Step, step))
		}
	}
	if step == StepExecutingSwap && e.state.IntentID == "" {
		e.mu.Unlock()
		panic("intent: executing swap without an intent id")
	}
	e.state.Step = step
	e.state.Progress = progress
	e.state.Message = message
	e.state.EstimatedSecondsLeft = etaSeconds
	fn := e.onUpdate
	state := e.state
	e.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

// update applies a mutation to the state and notifies the observer
func (e *Executor) update(mutate func(*ExecutionState)) {
	e.mu.Lock()
	mutate(&e.state)
	fn := e.onUpdate
	state := e.state
	e.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

// fail transitions to the error state and returns the matching error value
func (e *Executor) fail(log logrus.FieldLogger, message string, canRetry bool) error {
	e.update(func(s *ExecutionState) {
		s.Step = StepError
		s.Message = message
		s.Error = &ExecutionError{Message: message, CanRetry: canRetry}
		s.EstimatedSecondsLeft = 0
	})
	log.WithField("canRetry", canRetry).Error(message)
	return errors.New(message)
}

func (e *Executor) userLock(user common.Address) *sync.Mutex {
	lock, _ := e.userLocks.LoadOrStore(user, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
