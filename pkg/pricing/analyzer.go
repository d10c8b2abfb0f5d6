package pricing

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"commerce-swap/pkg/types"
)

// Fee tiers in basis points, matching the pools the platform routes through
const (
	FeeTier500   int64 = 500   // 0.05%
	FeeTier3000  int64 = 3000  // 0.3%
	FeeTier10000 int64 = 10000 // 1%
)

// Companion quote scaling factors. Only the 0.3% tier is a real oracle read;
// the other two tiers are approximated by scaling that single quote. The
// factors are a placeholder heuristic pending real multi-pool integration.
const (
	tier500Scale   = 1.0005 // +0.05% of the real quote
	tier10000Scale = 0.999  // -0.1% of the real quote
)

// Severity classifies the computed price impact
type Severity string

const (
	SeverityMinimal  Severity = "minimal"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityExtreme  Severity = "extreme"
)

// Fixed recommendation strings per severity bucket
var recommendations = map[Severity]string{
	SeverityMinimal:  "Minimal price impact - excellent conditions to swap",
	SeverityLow:      "Low price impact - good conditions to swap",
	SeverityModerate: "Moderate price impact - acceptable for most trades",
	SeverityHigh:     "High price impact - proceed with caution",
	SeverityExtreme:  "Extreme price impact - consider splitting this trade into smaller orders",
}

// QuoteProvider returns the expected output amount for a swap at a given fee
// tier. The production implementation reads the on-chain price oracle; tests
// substitute a fake. Real multi-pool providers can be plugged in here without
// touching the analyzer or the execution state machine.
type QuoteProvider interface {
	Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier int64) (*big.Int, error)
}

// TierQuote holds one (possibly synthetic) quote for a fee tier
type TierQuote struct {
	FeeTier   int64    `json:"fee_tier"`
	AmountOut *big.Int `json:"amount_out"`
	Synthetic bool     `json:"synthetic"` // true when scaled from the real quote
}

// PriceAnalysis is the result of analyzing a token pair and input amount.
// It has no identity beyond "current analysis for current inputs" and is
// recomputed from scratch on every input change.
type PriceAnalysis struct {
	Quotes         [3]TierQuote `json:"quotes"` // ordered 500, 3000, 10000
	OptimalFeeTier int64        `json:"optimal_fee_tier"`
	PriceImpactPct float64      `json:"price_impact_pct"`
	Severity       Severity     `json:"severity"`
	Recommendation string       `json:"recommendation"`
	ExchangeRate   float64      `json:"exchange_rate"` // dest tokens per source token
}

// BestQuote returns the quote for the optimal fee tier
func (a *PriceAnalysis) BestQuote() TierQuote {
	for _, q := range a.Quotes {
		if q.FeeTier == a.OptimalFeeTier {
			return q
		}
	}
	return a.Quotes[1]
}

// Analyzer produces price analyses for token pairs
type Analyzer struct {
	provider QuoteProvider
}

// NewAnalyzer creates an analyzer backed by the given quote provider
func NewAnalyzer(provider QuoteProvider) *Analyzer {
	return &Analyzer{provider: provider}
}

// Analyze fetches one real quote at the 0.3% tier, synthesizes the 0.05% and
// 1% tier quotes from it, and derives impact, severity, and exchange rate.
func (a *Analyzer) Analyze(ctx context.Context, fromToken, toToken *types.TokenInfo, fromAmount string) (*PriceAnalysis, error) {
	if fromToken == nil || toToken == nil {
		return nil, errors.New("both tokens are required")
	}

	amountIn, err := types.ParseUnits(fromAmount, fromToken.Decimals)
	if err != nil {
		return nil, errors.Wrap(err, "invalid from amount")
	}
	if amountIn.Sign() <= 0 {
		return nil, errors.New("amount must be positive")
	}

	quote3000, err := a.provider.Quote(ctx,
		common.HexToAddress(fromToken.Address),
		common.HexToAddress(toToken.Address),
		amountIn, FeeTier3000)
	if err != nil {
		return nil, errors.Wrap(err, "oracle quote failed")
	}
	if quote3000 == nil || quote3000.Sign() <= 0 {
		return nil, errors.New("oracle returned no quote")
	}

	quote500 := scaleQuote(quote3000, tier500Scale)
	quote10000 := scaleQuote(quote3000, tier10000Scale)

	quotes := [3]TierQuote{
		{FeeTier: FeeTier500, AmountOut: quote500, Synthetic: true},
		{FeeTier: FeeTier3000, AmountOut: quote3000},
		{FeeTier: FeeTier10000, AmountOut: quote10000, Synthetic: true},
	}

	best, worst := quotes[0], quotes[0]
	for _, q := range quotes[1:] {
		if q.AmountOut.Cmp(best.AmountOut) > 0 {
			best = q
		}
		if q.AmountOut.Cmp(worst.AmountOut) < 0 {
			worst = q
		}
	}

	impact := priceImpactPct(best.AmountOut, worst.AmountOut)
	severity := ClassifyImpact(impact)

	bestOut := types.FormatUnits(best.AmountOut, toToken.Decimals)
	in := types.FormatUnits(amountIn, fromToken.Decimals)
	rate := 0.0
	if in > 0 {
		rate = bestOut / in
	}

	return &PriceAnalysis{
		Quotes:         quotes,
		OptimalFeeTier: best.FeeTier,
		PriceImpactPct: impact,
		Severity:       severity,
		Recommendation: recommendations[severity],
		ExchangeRate:   rate,
	}, nil
}

// ClassifyImpact maps a price-impact percentage to a severity bucket.
// Lower bounds are inclusive: exactly 1.0% is moderate, exactly 5.0% extreme.
func ClassifyImpact(impactPct float64) Severity {
	switch {
	case impactPct >= 5:
		return SeverityExtreme
	case impactPct >= 2:
		return SeverityHigh
	case impactPct >= 1:
		return SeverityModerate
	case impactPct >= 0.5:
		return SeverityLow
	default:
		return SeverityMinimal
	}
}

// RecommendationFor returns the fixed recommendation string for a severity
func RecommendationFor(severity Severity) string {
	return recommendations[severity]
}

// priceImpactPct computes (best - worst) / best * 100
func priceImpactPct(best, worst *big.Int) float64 {
	if best.Sign() <= 0 {
		return 0
	}

	diff := new(big.Float).SetInt(new(big.Int).Sub(best, worst))
	ratio := new(big.Float).Quo(diff, new(big.Float).SetInt(best))
	pct, _ := new(big.Float).Mul(ratio, big.NewFloat(100)).Float64()

	return pct
}

// scaleQuote multiplies a quote by a float factor, truncating to an integer
func scaleQuote(quote *big.Int, factor float64) *big.Int {
	scaled := new(big.Float).Mul(new(big.Float).SetInt(quote), big.NewFloat(factor))
	result := new(big.Int)
	scaled.Int(result)
	return result
}
