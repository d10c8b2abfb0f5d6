package cmd

import (
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"commerce-swap/config"
	"commerce-swap/pkg/server"
)

var (
	listenAddr string
	autoSign   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signature backend",
	Long: `Run the HTTP service that signs payment intents and answers
signature-status queries. Intended for local development and testing of
the swap flow; the wallet's private key from the configuration is used
as the signer key.

With --auto-sign every queried intent is signed on first request without
needing to be registered first.

Examples:
  commerce-swap serve
  commerce-swap serve --addr :8080 --auto-sign`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().BoolVar(&autoSign, "auto-sign", false, "Sign any intent on first query")
}

func runServe(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	addr := cfg.ListenAddr
	if listenAddr != "" {
		addr = listenAddr
	}

	svc, err := server.New(cfg.PrivateKey, autoSign, logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	color.Green("\nSignature backend listening on %s", addr)
	color.Cyan("Signer address: %s\n", svc.SignerAddress())

	if err := http.ListenAndServe(addr, svc.Router()); err != nil {
		printError(err)
		os.Exit(1)
	}
}
