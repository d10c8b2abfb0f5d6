package cmd

import (
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"

	"commerce-swap/config"
	"commerce-swap/pkg/tokens"
	"commerce-swap/pkg/types"
)

const defaultLedgerFile = ".commerce-swap-ledger.json"

// buildRegistry converts the configured token list into a registry
func buildRegistry(cfg *config.Config) *tokens.Registry {
	infos := make([]types.TokenInfo, 0, len(cfg.Tokens))
	for _, tc := range cfg.Tokens {
		infos = append(infos, types.TokenInfo{
			Address:  tc.Address,
			Symbol:   tc.Symbol,
			Name:     tc.Name,
			Decimals: tc.Decimals,
			Price:    tc.Price,
			Category: tokens.CategoryFromString(tc.Category),
		})
	}
	return tokens.NewRegistry(infos)
}

// ledgerPath resolves the attempt ledger location, defaulting to the home
// directory when not configured
func ledgerPath(cfg *config.Config) string {
	if cfg.LedgerPath != "" {
		return cfg.LedgerPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultLedgerFile
	}
	return filepath.Join(home, defaultLedgerFile)
}

// tokenAddress returns the on-chain address for a token; the native asset
// maps to the zero address
func tokenAddress(token *types.TokenInfo) common.Address {
	if token.IsNative() {
		return common.Address{}
	}
	return common.HexToAddress(token.Address)
}
