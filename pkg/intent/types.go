package intent

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Step is the discriminated status of a swap execution attempt
type Step string

const (
	StepIdle               Step = "idle"
	StepCreatingIntent     Step = "creating_intent"
	StepExtractingIntentID Step = "extracting_intent_id"
	StepWaitingSignature   Step = "waiting_signature"
	StepExecutingSwap      Step = "executing_swap"
	StepCompleted          Step = "completed"
	StepError              Step = "error"
)

// stepRank orders the happy-path steps so transitions can only advance.
// StepError sits outside the ordering and is reachable from any non-terminal step.
var stepRank = map[Step]int{
	StepIdle:               0,
	StepCreatingIntent:     1,
	StepExtractingIntentID: 2,
	StepWaitingSignature:   3,
	StepExecutingSwap:      4,
	StepCompleted:          5,
}

// IdleMessage is the message shown while no swap is in flight
const IdleMessage = "Ready to execute swap"

// ExecutionError carries the user-facing failure message and whether a
// user-initiated retry makes sense
type ExecutionError struct {
	Message  string `json:"message"`
	CanRetry bool   `json:"can_retry"`
}

// ExecutionState is the observable state of one swap attempt. It is created
// fresh per attempt and returns to idle defaults on reset.
type ExecutionState struct {
	Step                 Step            `json:"step"`
	Progress             int             `json:"progress"` // 0-100
	Message              string          `json:"message"`
	IntentID             string          `json:"intent_id,omitempty"`
	TxHash               string          `json:"tx_hash,omitempty"`
	Signature            string          `json:"signature,omitempty"`
	Error                *ExecutionError `json:"error,omitempty"`
	EstimatedSecondsLeft int             `json:"estimated_seconds_left,omitempty"`
}

// NewExecutionState returns the documented idle defaults
func NewExecutionState() ExecutionState {
	return ExecutionState{
		Step:     StepIdle,
		Progress: 0,
		Message:  IdleMessage,
	}
}

// Terminal reports whether the state can be reset back to idle
func (s ExecutionState) Terminal() bool {
	return s.Step == StepCompleted || s.Step == StepError
}

// Payment type codes on the commerce contract. Swaps reuse the payment-intent
// machinery built for content purchases, distinguished by this code and a
// zero content id.
const (
	PaymentTypeContent uint8 = 0
	PaymentTypeSwap    uint8 = 5
)

// MaxSlippageBps is the full allowed range for the slippage setting
const MaxSlippageBps = 10000

// IntentDeadline is how long a created intent stays executable
const IntentDeadline = time.Hour

// PaymentIntent is the argument struct for createPaymentIntent, shared by the
// create and execute call sites so both submit the exact same shape.
type PaymentIntent struct {
	PaymentType  uint8
	Creator      common.Address // payer and nominal recipient; the user's own address for swaps
	ContentID    *big.Int       // zero is the "this is a swap" sentinel
	PaymentToken common.Address
	MaxSlippage  *big.Int // basis points
	Deadline     *big.Int // unix seconds
}

// NewSwapIntent builds the payment intent for a swap: the user pays
// themselves, content id zero, deadline one hour out.
func NewSwapIntent(user, paymentToken common.Address, slippagePct float64, now time.Time) PaymentIntent {
	return PaymentIntent{
		PaymentType:  PaymentTypeSwap,
		Creator:      user,
		ContentID:    big.NewInt(0),
		PaymentToken: paymentToken,
		MaxSlippage:  big.NewInt(int64(slippagePct * 100)),
		Deadline:     big.NewInt(now.Add(IntentDeadline).Unix()),
	}
}

// Validate checks the intent shape before submission
func (pi PaymentIntent) Validate(now time.Time) error {
	if pi.Creator == (common.Address{}) {
		return errors.New("creator address is required")
	}
	if pi.ContentID == nil {
		return errors.New("content id is required")
	}
	if pi.PaymentType == PaymentTypeSwap && pi.ContentID.Sign() != 0 {
		return errors.New("swap intents must carry a zero content id")
	}
	if pi.MaxSlippage == nil || pi.MaxSlippage.Sign() < 0 || pi.MaxSlippage.Int64() > MaxSlippageBps {
		return errors.New("slippage must be between 0 and 10000 basis points")
	}
	if pi.Deadline == nil || pi.Deadline.Int64() <= now.Unix() {
		return errors.New("deadline must be in the future")
	}
	return nil
}
