package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/fracshare-hq/asset-purchaser/pkg/config"
	"github.com/fracshare-hq/asset-purchaser/pkg/health"
	"github.com/fracshare-hq/asset-purchaser/pkg/purchaser"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <assetId> <tokenAmount>\n", os.Args[0])
		os.Exit(2)
	}
	assetID := os.Args[1]

	tokenAmount, err := decimal.NewFromString(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid token amount %q: %v\n", os.Args[2], err)
		os.Exit(2)
	}

	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the purchase service
	service, err := purchaser.NewService(cfg)
	if err != nil {
		log.Fatalf("Failed to create purchase service: %v", err)
	}
	defer service.Close()

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Println("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	// Start the health and metrics server
	healthServer := health.NewServer(cfg.MetricsPort, cfg.BackendEndpoint, service.Ledger, service.Breaker, service.Orchestrator)
	go healthServer.Start()

	result, err := service.Orchestrator.InitiatePurchase(ctx, assetID, tokenAmount)
	if err != nil {
		log.Fatalf("Purchase rejected: %v", err)
	}

	switch {
	case result.Succeeded && result.Err == nil:
		log.Printf("Purchase complete: trade %s settled in transaction %s", result.TradeID, result.TransactionReference)
	case result.Succeeded:
		log.Printf("Purchase confirmed on-ledger (transaction %s) but settlement did not complete: %v", result.TransactionReference, result.Err)
		log.Printf("Trade %s will be reconciled by the backend", result.TradeID)
	case result.Uncertain:
		log.Printf("Purchase outcome uncertain: %v", result.Err)
		log.Printf("Check your wallet and the ledger for transaction %s before retrying", result.TransactionReference)
		os.Exit(1)
	default:
		log.Printf("Purchase failed: %v", result.Err)
		os.Exit(1)
	}
}
