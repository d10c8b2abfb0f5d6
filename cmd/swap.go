package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"commerce-swap/config"
	"commerce-swap/pkg/client"
	"commerce-swap/pkg/intent"
	"commerce-swap/pkg/parser"
	"commerce-swap/pkg/pricing"
	"commerce-swap/pkg/security"
	"commerce-swap/pkg/types"
)

var (
	noConfirm    bool
	skipAnalysis bool
	slippageFlag float64
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Execute a token swap through the commerce contract",
	Long: `Swap tokens through the platform's commerce payment-intent contract.

The swap runs the full pipeline: a security pre-check over the attempt, a
price analysis across fee tiers, then the on-chain execution flow (create
intent, wait for the backend signature, execute intent).

Examples:
  commerce-swap swap 1 ETH to USDC
  commerce-swap swap 250 USDC to ETH --slippage 1.0
  commerce-swap swap 1 ETH to USDC --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&skipAnalysis, "skip-analysis", false, "Skip the price analysis step")
	swapCmd.Flags().Float64Var(&slippageFlag, "slippage", 0, "Slippage tolerance in percent (overrides config)")
}

func runSwap(cmd *cobra.Command, args []string) {
	// Parse the command
	commandStr := strings.Join(args, " ")
	swapReq, err := parser.ParseSwapCommand(commandStr)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	logger := newLogger(verbose)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if slippageFlag > 0 {
		swapReq.SlippagePct = slippageFlag
	} else {
		swapReq.SlippagePct = cfg.SlippagePct
	}

	// Resolve tokens against the configured list
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

	// Connect to the chain
	backend, err := intent.NewEVMBackend(cfg.RPCURL, cfg.PrivateKey, cfg.ChainID)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer backend.Close()
	swapReq.UserAddress = backend.From().Hex()

	// Security pre-check
	ledger, err := security.NewFileLedger(ledgerPath(cfg))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	checker := security.NewChecker(ledger, logger)
	validation := checker.Validate(fromToken.Address, toToken.Address, swapReq.Amount, swapReq.UserAddress)

	if !jsonOutput {
		displayValidation(validation)
	}
	if !validation.IsValid {
		if jsonOutput {
			jsonData, _ := json.MarshalIndent(validation, "", "  ")
			fmt.Println(string(jsonData))
		}
		printError(fmt.Errorf("security check failed with risk score %d", validation.RiskScore))
		os.Exit(1)
	}

	// Price analysis
	if !skipAnalysis {
		provider, err := pricing.NewOracleQuoteProvider(backend.Client(), common.HexToAddress(cfg.PriceOracle))
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		analyzer := pricing.NewAnalyzer(provider)

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

	// Ask for confirmation
	if !noConfirm && !jsonOutput {
		if !confirmSwap() {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	// Execute the swap
	codec, err := intent.NewCodec(common.HexToAddress(cfg.CommerceContract))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	signatures := client.NewSignatureClient(cfg.SignatureAPIURL)
	executor := intent.NewExecutor(backend, codec, signatures, logger)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		executor.OnUpdate(func(state intent.ExecutionState) {
			s.Suffix = fmt.Sprintf(" [%3d%%] %s", state.Progress, state.Message)
		})
		s.Suffix = " Starting swap..."
		s.Start()
	}

	receipt, err := executor.Execute(cmd.Context(), intent.ExecuteRequest{
		FromToken:   tokenAddress(fromToken),
		ToToken:     tokenAddress(toToken),
		Amount:      swapReq.Amount,
		FromSymbol:  fromToken.Symbol,
		ToSymbol:    toToken.Symbol,
		SlippagePct: swapReq.SlippagePct,
	})
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		if state := executor.State(); state.Error != nil && state.Error.CanRetry {
			color.Yellow("\nThis attempt can be retried.")
		}
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(receipt, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayReceipt(receipt)
	printSuccess(color.GreenString("Swap completed successfully"))
}

func displayValidation(v *security.Validation) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                  SECURITY PRE-CHECK")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Risk Score:  %s\n", coloredRiskScore(v.RiskScore))
	if v.IsValid {
		fmt.Printf("  Verdict:     %s\n", color.GreenString("PASS"))
	} else {
		fmt.Printf("  Verdict:     %s\n", color.RedString("BLOCKED"))
	}

	if len(v.Warnings) > 0 {
		fmt.Println("\n  Warnings:")
		for _, warning := range v.Warnings {
			fmt.Printf("    - %s\n", color.YellowString(warning))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func coloredRiskScore(score int) string {
	text := fmt.Sprintf("%d/100", score)
	switch {
	case score >= security.ValidityThreshold:
		return color.RedString(text)
	case score > 0:
		return color.YellowString(text)
	default:
		return color.GreenString(text)
	}
}

func displayReceipt(receipt *types.SwapReceipt) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    SWAP COMPLETED")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Swapped:       %s %s to %s\n", receipt.FromAmount,
		color.YellowString(receipt.FromToken), color.YellowString(receipt.ToToken))
	fmt.Printf("  Intent ID:     %s\n", color.CyanString(receipt.IntentID))
	fmt.Printf("  Create Tx:     %s\n", color.HiBlackString(receipt.CreateTxHash))
	fmt.Printf("  Execute Tx:    %s\n", color.HiBlackString(receipt.ExecTxHash))

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
