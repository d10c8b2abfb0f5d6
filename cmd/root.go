package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "commerce-swap",
	Short: "A CLI for token swaps through the commerce payment-intent contract",
	Long: `commerce-swap is a command-line tool for executing token swaps on the
content platform's commerce contract. It analyzes prices across fee tiers,
runs a security pre-check over each attempt, and walks the swap through the
payment-intent lifecycle: create the intent, wait for the backend signature,
then execute.

Examples:
  commerce-swap swap 1 ETH to USDC
  commerce-swap analyze 0.5 ETH to USDC --watch
  commerce-swap tokens
  commerce-swap status <intent-id>
  commerce-swap serve`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}

// newLogger builds the CLI logger; verbose raises the level to debug
func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	return logger
}
