package security

import (
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Risk-score penalties per violated check
const (
	penaltyMissingParams = 30
	penaltyInvalidAmount = 25
	penaltyLargeAmount   = 15 // informational only
	penaltyBadAddress    = 35
	penaltyRateLimit     = 40
	penaltyDuplicate     = 30
)

const (
	// A total risk score below this threshold is considered valid
	ValidityThreshold = 50
	// Scores are clamped to this maximum
	MaxRiskScore = 100

	largeAmountThreshold = 1_000_000

	rateLimitWindow   = 60 * time.Second
	rateLimitMax      = 10 // more than this many requests in the window is flagged
	duplicateWindow   = 30 * time.Second
	duplicateTolerance = 0.01 // amounts within 1% count as the same intent
)

var addressPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{40}$`)

// Validation is the outcome of a pre-submission security check
type Validation struct {
	IsValid   bool     `json:"is_valid"`
	RiskScore int      `json:"risk_score"` // 0-100, higher is riskier
	Warnings  []string `json:"warnings"`
}

// Checker runs advisory heuristics over a swap attempt before any
// transaction is submitted. It is client-side only and provides no on-chain
// enforcement: clearing the ledger or running from another machine bypasses
// it entirely. It must never be treated as a security boundary.
type Checker struct {
	ledger AttemptLedger
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewChecker creates a checker backed by the given attempt ledger
func NewChecker(ledger AttemptLedger, logger logrus.FieldLogger) *Checker {
	return &Checker{
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source, used by tests
func (c *Checker) SetClock(now func() time.Time) {
	c.now = now
}

// Validate scores a swap attempt. Each violated check adds its fixed penalty;
// the attempt is valid while the total stays below ValidityThreshold.
//
// Side effects: the request timestamp is always recorded, and the intent
// fingerprint is recorded when no near-duplicate was found.
func (c *Checker) Validate(fromToken, toToken, amount, userAddress string) *Validation {
	now := c.now()
	risk := 0
	var warnings []string

	amountValue, amountErr := strconv.ParseFloat(amount, 64)
	amountOK := amount != "" && amountErr == nil && amountValue > 0

	// A non-positive or unparseable amount also fails the presence check,
	// mirroring the web client's falsy-value handling
	if fromToken == "" || toToken == "" || userAddress == "" || !amountOK {
		risk += penaltyMissingParams
		warnings = append(warnings, "Missing required parameters")
	}
	if !amountOK {
		risk += penaltyInvalidAmount
		warnings = append(warnings, "Invalid amount: must be a positive number")
	}
	if amountOK && amountValue > largeAmountThreshold {
		risk += penaltyLargeAmount
		warnings = append(warnings, "Unusually large amount")
	}

	if userAddress != "" && !addressPattern.MatchString(userAddress) {
		risk += penaltyBadAddress
		warnings = append(warnings, "Malformed wallet address")
	}

	// Always record this request, then check the trailing window
	if err := c.ledger.RecordRequest(now); err != nil {
		c.logger.WithError(err).Warn("failed to record request timestamp")
	}
	recent, err := c.ledger.RecentRequestCount(now.Add(-rateLimitWindow))
	if err != nil {
		c.logger.WithError(err).Warn("failed to count recent requests")
	} else if recent > rateLimitMax {
		risk += penaltyRateLimit
		warnings = append(warnings, "Too many swap attempts - please slow down")
	}

	if amountOK {
		fp := IntentFingerprint{
			FromToken: fromToken,
			ToToken:   toToken,
			Amount:    amountValue,
			Timestamp: now,
		}
		duplicate, err := c.ledger.FindSimilarIntent(fp, duplicateTolerance, duplicateWindow)
		if err != nil {
			c.logger.WithError(err).Warn("failed to scan for duplicate intents")
		} else if duplicate {
			risk += penaltyDuplicate
			warnings = append(warnings, "Possible duplicate swap detected")
		} else if err := c.ledger.RecordIntent(fp); err != nil {
			c.logger.WithError(err).Warn("failed to record intent fingerprint")
		}
	}

	if risk > MaxRiskScore {
		risk = MaxRiskScore
	}

	return &Validation{
		IsValid:   risk < ValidityThreshold,
		RiskScore: risk,
		Warnings:  warnings,
	}
}
