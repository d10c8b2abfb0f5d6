package cmd

import (
	"encoding/json"
	"fmt"
	"math/big"
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
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <intent-id>",
	Short: "Check the backend signature status of a payment intent",
	Long: `Query the signature backend for a payment intent's signing status.

The intent hash is derived from the intent id, the commerce contract, and
the configured wallet, so the command needs the same configuration the
swap was executed with.

Examples:
  commerce-swap status 42
  commerce-swap status 42 --watch
  commerce-swap status 42 --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	intentID, ok := new(big.Int).SetString(args[0], 10)
	if !ok {
		printError(fmt.Errorf("invalid intent id: %s", args[0]))
		os.Exit(1)
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
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

	contract := common.HexToAddress(cfg.CommerceContract)
	intentHash := intent.IntentHash(intentID, contract, backend.From())
	signatures := client.NewSignatureClient(cfg.SignatureAPIURL)

	if watchStatus {
		watchSignatureStatus(cmd, signatures, intentID.String(), intentHash.Hex(), jsonOutput)
	} else {
		checkSignatureStatus(cmd, signatures, intentID.String(), intentHash.Hex(), jsonOutput)
	}
}

func checkSignatureStatus(cmd *cobra.Command, signatures *client.SignatureClient, intentID, intentHash string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking signature status..."
		s.Start()
	}

	status, err := signatures.SignatureStatus(cmd.Context(), intentID, intentHash)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displaySignatureStatus(status, intentID)
	}
}

func watchSignatureStatus(cmd *cobra.Command, signatures *client.SignatureClient, intentID, intentHash string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching signature status (Intent ID: %s)\n", color.CyanString(intentID))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	// Check immediately first
	checkAndDisplaySignatureStatus(cmd, signatures, intentID, intentHash)

	// Then check periodically
	for range ticker.C {
		checkAndDisplaySignatureStatus(cmd, signatures, intentID, intentHash)
	}
}

func checkAndDisplaySignatureStatus(cmd *cobra.Command, signatures *client.SignatureClient, intentID, intentHash string) {
	status, err := signatures.SignatureStatus(cmd.Context(), intentID, intentHash)
	if err != nil {
		color.Red("Error: %v", err)
		return
	}

	displaySignatureStatus(status, intentID)
}

func displaySignatureStatus(status *intent.SignatureStatus, intentID string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     SIGNATURE STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Intent ID:   %s\n", color.CyanString(intentID))
	if status.IsSigned {
		fmt.Printf("  Status:      %s\n", color.GreenString("SIGNED"))
		fmt.Printf("  Signature:   %s\n", color.HiBlackString(status.Signature))
	} else {
		fmt.Printf("  Status:      %s\n", color.YellowString("PENDING"))
	}
	fmt.Printf("  Checked At:  %s\n", time.Now().Format("2006-01-02 15:04:05"))

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
