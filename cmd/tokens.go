package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"commerce-swap/config"
	"commerce-swap/pkg/intent"
	"commerce-swap/pkg/types"
)

var (
	filterSymbol string
	withBalances bool
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List the platform's configured tokens",
	Long: `List the tokens configured for swapping, grouped by category.

With --balances the wallet's on-chain balance for each token is fetched
and shown alongside its USD value.

Examples:
  commerce-swap tokens
  commerce-swap tokens --symbol USDC
  commerce-swap tokens --balances`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	tokensCmd.Flags().BoolVar(&withBalances, "balances", false, "Fetch on-chain balances")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	registry := buildRegistry(cfg)

	if withBalances {
		backend, err := intent.NewEVMBackend(cfg.RPCURL, cfg.PrivateKey, cfg.ChainID)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		defer backend.Close()

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		if !jsonOutput {
			s.Suffix = " Fetching balances..."
			s.Start()
		}

		err = registry.RefreshBalances(cmd.Context(), backend.Client(), backend.From())
		if !jsonOutput {
			s.Stop()
		}
		if err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	// Apply filters
	filtered := registry.List()
	if filterSymbol != "" {
		var temp []*types.TokenInfo
		for _, token := range filtered {
			if strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(filterSymbol)) {
				temp = append(temp, token)
			}
		}
		filtered = temp
	}

	// Output
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(filtered)
	}
}

func displayTokens(list []*types.TokenInfo) {
	if len(list) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            CONFIGURED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	// Group tokens by category
	tokensByCategory := make(map[types.TokenCategory][]*types.TokenInfo)
	for _, token := range list {
		tokensByCategory[token.Category] = append(tokensByCategory[token.Category], token)
	}

	// Sort categories alphabetically
	categories := make([]string, 0, len(tokensByCategory))
	for category := range tokensByCategory {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)

	for _, category := range categories {
		color.Cyan("\n%s", strings.ToUpper(category))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokensByCategory[types.TokenCategory(category)] {
			address := token.Address
			if len(address) > 40 {
				address = address[:37] + "..."
			}

			line := fmt.Sprintf("  %-10s  %2d decimals  %-42s",
				color.YellowString(token.Symbol),
				token.Decimals,
				color.HiBlackString(address))

			if withBalances {
				line += fmt.Sprintf("  %s ($%.2f)", token.BalanceFormatted, token.BalanceUSD)
			}
			fmt.Println(line)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens\n\n", len(list))
}

