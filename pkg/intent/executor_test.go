package intent

import (
	"context"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records submitted transactions and serves canned receipts
type fakeBackend struct {
	mu        sync.Mutex
	from      common.Address
	submitErr error
	receipts  []*ethtypes.Receipt // served in submission order
	submitted [][]byte
	waited    int
}

func (b *fakeBackend) From() common.Address {
	return b.from
}

func (b *fakeBackend) SubmitTransaction(_ context.Context, _ common.Address, data []byte) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return common.Hash{}, b.submitErr
	}
	b.submitted = append(b.submitted, data)
	return crypto.Keccak256Hash(data), nil
}

func (b *fakeBackend) WaitMined(_ context.Context, _ common.Hash) (*ethtypes.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.waited >= len(b.receipts) {
		return nil, errors.New("no receipt configured")
	}
	receipt := b.receipts[b.waited]
	b.waited++
	return receipt, nil
}

// fakeSignatures serves signature-status responses, optionally gated so a
// test can hold an execution in the waiting step
type fakeSignatures struct {
	mu        sync.Mutex
	signAfter int // respond signed starting with this call number (1-based); 0 means never
	calls     int
	gate      chan struct{} // when set, polls block until the gate closes
	err       error
}

func (s *fakeSignatures) SignatureStatus(ctx context.Context, intentID, intentHash string) (*SignatureStatus, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.calls++
	if s.signAfter > 0 && s.calls >= s.signAfter {
		return &SignatureStatus{IsSigned: true, Signature: "0xsigned"}, nil
	}
	return &SignatureStatus{IsSigned: false}, nil
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestExecutor(t *testing.T, backend Backend, signatures SignatureSource) *Executor {
	t.Helper()
	codec, err := NewCodec(testContract)
	require.NoError(t, err)

	executor := NewExecutor(backend, codec, signatures, quietLogger())
	executor.SetPollPolicy(time.Millisecond, 5)
	executor.SetClock(testNow)
	return executor
}

func execReceipt(status uint64) *ethtypes.Receipt {
	return &ethtypes.Receipt{Status: status}
}

func testRequest() ExecuteRequest {
	return ExecuteRequest{
		FromToken:   testToken,
		ToToken:     common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		Amount:      "1.5",
		FromSymbol:  "WETH",
		ToSymbol:    "USDC",
		SlippagePct: 0.5,
	}
}

func TestExecuteHappyPath(t *testing.T) {
	codec, err := NewCodec(testContract)
	require.NoError(t, err)

	backend := &fakeBackend{
		from: testPayer,
		receipts: []*ethtypes.Receipt{
			intentCreatedReceipt(codec, big.NewInt(99)),
			execReceipt(1),
		},
	}
	signatures := &fakeSignatures{signAfter: 2}
	executor := newTestExecutor(t, backend, signatures)

	var states []ExecutionState
	executor.OnUpdate(func(s ExecutionState) { states = append(states, s) })

	receipt, err := executor.Execute(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "99", receipt.IntentID)
	assert.Equal(t, "WETH", receipt.FromToken)
	assert.NotEmpty(t, receipt.CreateTxHash)
	assert.NotEmpty(t, receipt.ExecTxHash)
	assert.NotEqual(t, receipt.CreateTxHash, receipt.ExecTxHash)

	final := executor.State()
	assert.Equal(t, StepCompleted, final.Step)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, "0xsigned", final.Signature)

	// Steps only ever advance, and executing_swap always follows a state
	// that already carries the intent id
	lastRank := 0
	for _, s := range states {
		rank, ok := stepRank[s.Step]
		require.True(t, ok, "unexpected step %s", s.Step)
		assert.GreaterOrEqual(t, rank, lastRank)
		lastRank = rank
		if s.Step == StepExecutingSwap {
			assert.NotEmpty(t, s.IntentID)
		}
	}

	// Both chain writes went to the commerce contract in order
	require.Len(t, backend.submitted, 2)
}

func TestExecuteSubmissionFailure(t *testing.T) {
	backend := &fakeBackend{from: testPayer, submitErr: errors.New("wallet rejected")}
	executor := newTestExecutor(t, backend, &fakeSignatures{signAfter: 1})

	_, err := executor.Execute(context.Background(), testRequest())
	require.Error(t, err)

	state := executor.State()
	assert.Equal(t, StepError, state.Step)
	require.NotNil(t, state.Error)
	assert.True(t, state.Error.CanRetry)
	assert.Contains(t, state.Error.Message, "wallet rejected")
}

func TestExecuteRevertedCreateTransaction(t *testing.T) {
	backend := &fakeBackend{
		from:     testPayer,
		receipts: []*ethtypes.Receipt{execReceipt(0)},
	}
	executor := newTestExecutor(t, backend, &fakeSignatures{signAfter: 1})

	_, err := executor.Execute(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, "Intent creation transaction reverted", executor.State().Error.Message)
}

func TestExecuteIntentIDExtractionFailure(t *testing.T) {
	backend := &fakeBackend{
		from:     testPayer,
		receipts: []*ethtypes.Receipt{execReceipt(1)}, // confirmed, but no logs
	}
	executor := newTestExecutor(t, backend, &fakeSignatures{signAfter: 1})

	_, err := executor.Execute(context.Background(), testRequest())
	require.Error(t, err)

	state := executor.State()
	assert.Equal(t, StepError, state.Step)
	assert.Equal(t, ExtractIntentIDMessage, state.Error.Message)
}

func TestExecuteSignatureTimeout(t *testing.T) {
	codec, err := NewCodec(testContract)
	require.NoError(t, err)

	backend := &fakeBackend{
		from:     testPayer,
		receipts: []*ethtypes.Receipt{intentCreatedReceipt(codec, big.NewInt(5))},
	}
	signatures := &fakeSignatures{} // never signs
	executor := newTestExecutor(t, backend, signatures)

	_, err = executor.Execute(context.Background(), testRequest())
	require.Error(t, err)

	state := executor.State()
	assert.Equal(t, StepError, state.Step)
	assert.Equal(t, SignatureTimeoutMessage, state.Error.Message)
	assert.True(t, state.Error.CanRetry)
	assert.Equal(t, 5, signatures.calls, "every attempt in the budget was used")
}

func TestExecuteCancelledDuringSignatureWait(t *testing.T) {
	codec, err := NewCodec(testContract)
	require.NoError(t, err)

	backend := &fakeBackend{
		from:     testPayer,
		receipts: []*ethtypes.Receipt{intentCreatedReceipt(codec, big.NewInt(6))},
	}
	executor := newTestExecutor(t, backend, &fakeSignatures{})
	executor.SetPollPolicy(time.Hour, 30) // long spacing so cancellation wins

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := executor.Execute(ctx, testRequest())
		done <- err
	}()

	// Let the execution reach the waiting step, then cancel
	require.Eventually(t, func() bool {
		return executor.State().Step == StepWaitingSignature
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("execution did not abort on cancellation")
	}

	assert.Equal(t, StepError, executor.State().Step)
}

func TestExecuteRejectsConcurrentAttempt(t *testing.T) {
	codec, err := NewCodec(testContract)
	require.NoError(t, err)

	gate := make(chan struct{})
	backend := &fakeBackend{
		from: testPayer,
		receipts: []*ethtypes.Receipt{
			intentCreatedReceipt(codec, big.NewInt(7)),
			execReceipt(1),
		},
	}
	signatures := &fakeSignatures{signAfter: 1, gate: gate}
	executor := newTestExecutor(t, backend, signatures)

	done := make(chan error, 1)
	go func() {
		_, err := executor.Execute(context.Background(), testRequest())
		done <- err
	}()

	require.Eventually(t, func() bool {
		return executor.State().Step == StepWaitingSignature
	}, 2*time.Second, 5*time.Millisecond)

	// A second attempt for the same payer is rejected while one is in flight
	_, err = executor.Execute(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")

	close(gate)
	require.NoError(t, <-done)
}

func TestResetRestoresIdleDefaults(t *testing.T) {
	backend := &fakeBackend{from: testPayer, submitErr: errors.New("boom")}
	executor := newTestExecutor(t, backend, &fakeSignatures{})

	_, err := executor.Execute(context.Background(), testRequest())
	require.Error(t, err)
	require.Equal(t, StepError, executor.State().Step)

	require.NoError(t, executor.Reset())
	assert.Equal(t, NewExecutionState(), executor.State())
}

func TestResetFromCompleted(t *testing.T) {
	codec, err := NewCodec(testContract)
	require.NoError(t, err)

	backend := &fakeBackend{
		from: testPayer,
		receipts: []*ethtypes.Receipt{
			intentCreatedReceipt(codec, big.NewInt(8)),
			execReceipt(1),
		},
	}
	executor := newTestExecutor(t, backend, &fakeSignatures{signAfter: 1})

	_, err = executor.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, StepCompleted, executor.State().Step)

	require.NoError(t, executor.Reset())
	assert.Equal(t, NewExecutionState(), executor.State())
}

func TestExecuteRequiresIdleState(t *testing.T) {
	backend := &fakeBackend{from: testPayer, submitErr: errors.New("boom")}
	executor := newTestExecutor(t, backend, &fakeSignatures{})

	_, err := executor.Execute(context.Background(), testRequest())
	require.Error(t, err)

	// Without a reset the executor refuses a new attempt
	_, err = executor.Execute(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset")
}
