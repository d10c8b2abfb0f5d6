package cmd

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"commerce-swap/config"
	"commerce-swap/pkg/intent"
	"commerce-swap/pkg/parser"
	"commerce-swap/pkg/pricing"
	"commerce-swap/pkg/types"
)

var watchPrices bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <amount> <source-token> to <dest-token>",
	Short: "Analyze swap pricing across fee tiers",
	Long: `Quote a swap across the oracle's fee tiers and report the optimal tier,
the price impact, and a recommendation. No transaction is sent.

With --watch the analysis refreshes every 30 seconds until interrupted.

Examples:
  commerce-swap analyze 1 ETH to USDC
  commerce-swap analyze 10 ETH to USDC --watch`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolVarP(&watchPrices, "watch", "w", false, "Refresh the analysis continuously")
}

func runAnalyze(cmd *cobra.Command, args []string) {
	commandStr := strings.Join(args, " ")
	swapReq, err := parser.ParseSwapCommand(commandStr)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	logger := newLogger(verbose)

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	registry := buildRegistry(cfg)
	fromToken, err := registry.Find(swapReq.FromToken)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	toToken, err := registry.Find(swapReq.ToToken)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	backend, err := intent.NewEVMBackend(cfg.RPCURL, cfg.PrivateKey, cfg.ChainID)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer backend.Close()

	provider, err := pricing.NewOracleQuoteProvider(backend.Client(), common.HexToAddress(cfg.PriceOracle))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	analyzer := pricing.NewAnalyzer(provider)

	if watchPrices {
		if jsonOutput {
			fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
			os.Exit(1)
		}
		watchAnalysis(cmd, analyzer, logger, fromToken, toToken, swapReq.Amount)
		return
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Analyzing prices..."
		s.Start()
	}

	analysis, err := analyzer.Analyze(cmd.Context(), fromToken, toToken, swapReq.Amount)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(analysis, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayAnalysis(analysis, fromToken, toToken, swapReq.Amount)
	}
}

func watchAnalysis(cmd *cobra.Command, analyzer *pricing.Analyzer, logger *logrus.Logger, fromToken, toToken *types.TokenInfo, amount string) {
	fmt.Printf("\nWatching prices for %s %s to %s\n", amount,
		color.YellowString(fromToken.Symbol), color.YellowString(toToken.Symbol))
	fmt.Printf("Refreshing every %.0f seconds. Press Ctrl+C to stop.\n", pricing.DefaultRefreshInterval.Seconds())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	watcher := pricing.NewWatcher(analyzer, logger)
	watcher.OnUpdate(func(analysis *pricing.PriceAnalysis) {
		if analysis == nil {
			color.Red("Price analysis failed; retrying on the next refresh")
			return
		}
		displayAnalysis(analysis, fromToken, toToken, amount)
	})
	watcher.SetInputs(&pricing.WatchInputs{
		FromToken:  fromToken,
		ToToken:    toToken,
		FromAmount: amount,
	})
	watcher.Start(ctx)
	defer watcher.Stop()

	<-ctx.Done()
	fmt.Println("\nStopped.")
}

func displayAnalysis(analysis *pricing.PriceAnalysis, fromToken, toToken *types.TokenInfo, amount string) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    PRICE ANALYSIS")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Swap:            %s %s to %s\n", amount,
		color.YellowString(fromToken.Symbol), color.YellowString(toToken.Symbol))

	fmt.Println("\n  Fee Tier Quotes:")
	for _, quote := range analysis.Quotes {
		marker := " "
		if quote.FeeTier == analysis.OptimalFeeTier {
			marker = color.GreenString("*")
		}
		label := fmt.Sprintf("%.2f%%", float64(quote.FeeTier)/10000)
		source := "on-chain"
		if quote.Synthetic {
			source = "derived"
		}
		fmt.Printf("  %s %-7s %s %s %s\n", marker, label,
			formatAmountOut(quote.AmountOut, toToken), color.YellowString(toToken.Symbol),
			color.HiBlackString("("+source+")"))
	}

	fmt.Printf("\n  Optimal Tier:    %.2f%%\n", float64(analysis.OptimalFeeTier)/10000)
	fmt.Printf("  Exchange Rate:   1 %s = %.6f %s\n", fromToken.Symbol, analysis.ExchangeRate, toToken.Symbol)
	fmt.Printf("  Price Impact:    %s\n", coloredImpact(analysis.PriceImpactPct, analysis.Severity))
	fmt.Printf("  Recommendation:  %s\n", analysis.Recommendation)

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func formatAmountOut(amountOut *big.Int, token *types.TokenInfo) string {
	if amountOut == nil {
		return "?"
	}
	return fmt.Sprintf("%.6f", types.FormatUnits(amountOut, token.Decimals))
}

func coloredImpact(impactPct float64, severity pricing.Severity) string {
	text := fmt.Sprintf("%.4f%% (%s)", impactPct, severity)
	switch severity {
	case pricing.SeverityMinimal, pricing.SeverityLow:
		return color.GreenString(text)
	case pricing.SeverityModerate:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}
