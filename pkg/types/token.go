package types

// TokenCategory groups tokens for display and risk heuristics
type TokenCategory string

const (
	CategoryNative     TokenCategory = "native"
	CategoryStablecoin TokenCategory = "stablecoin"
	CategoryOther      TokenCategory = "other"
)

// TokenInfo describes a token known to the platform, including cached
// balance and price data. Balances are refreshed by re-querying the chain;
// nothing here is persisted across runs.
type TokenInfo struct {
	Address          string        `json:"address"`
	Symbol           string        `json:"symbol"`
	Name             string        `json:"name"`
	Decimals         uint8         `json:"decimals"`
	Price            float64       `json:"price"`             // Cached USD price
	Balance          string        `json:"balance"`           // Raw balance in smallest unit
	BalanceFormatted string        `json:"balance_formatted"` // Balance in whole-token units
	BalanceUSD       float64       `json:"balance_usd"`
	PriceChange24h   float64       `json:"price_change_24h"`
	Category         TokenCategory `json:"category"`
}

// IsNative returns true for the chain's native asset (no contract address)
func (t *TokenInfo) IsNative() bool {
	return t.Category == CategoryNative
}
