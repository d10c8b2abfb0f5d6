package tokens

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"commerce-swap/pkg/types"
)

// ERC20 balanceOf function ABI
const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

// ChainReader is the subset of the eth client used for balance queries
type ChainReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Registry holds the platform's configured token list
type Registry struct {
	tokens map[string]*types.TokenInfo
	order  []string
}

// NewRegistry creates a registry from the configured token list
func NewRegistry(configured []types.TokenInfo) *Registry {
	r := &Registry{tokens: make(map[string]*types.TokenInfo)}
	for i := range configured {
		token := configured[i]
		symbol := strings.ToUpper(token.Symbol)
		if _, exists := r.tokens[symbol]; exists {
			continue
		}
		r.tokens[symbol] = &token
		r.order = append(r.order, symbol)
	}
	return r
}

// Find searches for a token by symbol
func (r *Registry) Find(symbol string) (*types.TokenInfo, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	// Try exact match first
	if token, ok := r.tokens[symbol]; ok {
		return token, nil
	}

	// Try partial match
	for _, key := range r.order {
		if strings.Contains(key, symbol) {
			return r.tokens[key], nil
		}
	}

	return nil, fmt.Errorf("token '%s' not found", symbol)
}

// List returns all tokens in configuration order
func (r *Registry) List() []*types.TokenInfo {
	list := make([]*types.TokenInfo, 0, len(r.order))
	for _, symbol := range r.order {
		list = append(list, r.tokens[symbol])
	}
	return list
}

// Count returns the number of registered tokens
func (r *Registry) Count() int {
	return len(r.tokens)
}

// RefreshBalances re-queries every token's balance for the owner and updates
// the cached raw, formatted, and USD values in place
func (r *Registry) RefreshBalances(ctx context.Context, reader ChainReader, owner common.Address) error {
	parsedABI, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		return errors.Wrap(err, "failed to parse balanceOf ABI")
	}

	for _, symbol := range r.order {
		token := r.tokens[symbol]

		var balance *big.Int
		if token.IsNative() {
			balance, err = reader.BalanceAt(ctx, owner, nil)
		} else {
			balance, err = erc20Balance(ctx, reader, parsedABI, common.HexToAddress(token.Address), owner)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to get %s balance", token.Symbol)
		}

		token.Balance = balance.String()
		token.BalanceFormatted = fmt.Sprintf("%.6f", types.FormatUnits(balance, token.Decimals))
		token.BalanceUSD = types.FormatUnits(balance, token.Decimals) * token.Price
	}

	return nil
}

// erc20Balance reads balanceOf(owner) from a token contract
func erc20Balance(ctx context.Context, reader ChainReader, parsedABI abi.ABI, tokenAddress, owner common.Address) (*big.Int, error) {
	data, err := parsedABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack balanceOf data")
	}

	msg := ethereum.CallMsg{
		To:   &tokenAddress,
		Data: data,
	}

	result, err := reader.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to call balanceOf")
	}

	balance := new(big.Int)
	balance.SetBytes(result)

	return balance, nil
}

// CategoryFromString maps a configured category name to a TokenCategory
func CategoryFromString(category string) types.TokenCategory {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "native":
		return types.CategoryNative
	case "stablecoin", "stable":
		return types.CategoryStablecoin
	default:
		return types.CategoryOther
	}
}
