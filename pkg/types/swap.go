package types

// SwapRequest represents a user's swap command
type SwapRequest struct {
	Amount      string
	FromToken   string
	ToToken     string
	UserAddress string
	SlippagePct float64
}

// QuoteDisplay holds formatted quote information for display
type QuoteDisplay struct {
	FromAmount     string
	FromToken      string
	ToAmount       string
	ToToken        string
	Rate           string
	OptimalFeeTier string
	PriceImpact    string
	Recommendation string
}

// SwapReceipt summarizes a completed swap for display
type SwapReceipt struct {
	IntentID     string
	CreateTxHash string
	ExecTxHash   string
	FromAmount   string
	FromToken    string
	ToToken      string
}
