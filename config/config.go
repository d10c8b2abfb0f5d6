package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// TokenConfig describes one entry of the configured token list
type TokenConfig struct {
	Address  string  `mapstructure:"address"`
	Symbol   string  `mapstructure:"symbol"`
	Name     string  `mapstructure:"name"`
	Decimals uint8   `mapstructure:"decimals"`
	Price    float64 `mapstructure:"price"`
	Category string  `mapstructure:"category"`
}

// Config holds the application configuration
type Config struct {
	RPCURL           string
	ChainID          int64
	PrivateKey       string
	CommerceContract string
	PriceOracle      string
	SignatureAPIURL  string
	LedgerPath       string
	SlippagePct      float64
	ListenAddr       string
	Tokens           []TokenConfig
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".commerce-swap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("rpc_url", "http://localhost:8545")
	viper.SetDefault("chain_id", 8453)
	viper.SetDefault("signature_api_url", "http://localhost:3100")
	viper.SetDefault("slippage_pct", 0.5)
	viper.SetDefault("listen_addr", ":3100")

	// Read from environment variables
	viper.SetEnvPrefix("COMMERCE_SWAP")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	// Create config struct
	cfg := &Config{
		RPCURL:           viper.GetString("rpc_url"),
		ChainID:          viper.GetInt64("chain_id"),
		PrivateKey:       viper.GetString("private_key"),
		CommerceContract: viper.GetString("commerce_contract"),
		PriceOracle:      viper.GetString("price_oracle"),
		SignatureAPIURL:  viper.GetString("signature_api_url"),
		LedgerPath:       viper.GetString("ledger_path"),
		SlippagePct:      viper.GetFloat64("slippage_pct"),
		ListenAddr:       viper.GetString("listen_addr"),
	}

	if err := viper.UnmarshalKey("tokens", &cfg.Tokens); err != nil {
		return nil, fmt.Errorf("invalid token list in config: %w", err)
	}

	// Validate contract addresses
	if cfg.CommerceContract == "" {
		return nil, fmt.Errorf("commerce contract address not found. Please set COMMERCE_SWAP_COMMERCE_CONTRACT or add commerce_contract to your .commerce-swap.yaml config file")
	}
	if cfg.PriceOracle == "" {
		return nil, fmt.Errorf("price oracle address not found. Please set COMMERCE_SWAP_PRICE_ORACLE or add price_oracle to your .commerce-swap.yaml config file")
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
