package types

import (
	"fmt"
	"math/big"
)

// ParseUnits converts a decimal string amount to the token's smallest unit
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amountFloat := new(big.Float)
	if _, ok := amountFloat.SetString(amount); !ok {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}

	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	scaled := new(big.Float).Mul(amountFloat, scale)

	result := new(big.Int)
	scaled.Int(result)

	return result, nil
}

// FormatUnits converts an amount in the token's smallest unit to a float in
// whole-token units. Precision loss is acceptable for display purposes.
func FormatUnits(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}

	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value := new(big.Float).Quo(new(big.Float).SetInt(amount), scale)

	result, _ := value.Float64()
	return result
}
