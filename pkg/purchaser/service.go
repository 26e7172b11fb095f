package purchaser

import (
	"fmt"

	"github.com/fracshare-hq/asset-purchaser/pkg/backend"
	"github.com/fracshare-hq/asset-purchaser/pkg/circuitbreaker"
	"github.com/fracshare-hq/asset-purchaser/pkg/config"
	"github.com/fracshare-hq/asset-purchaser/pkg/ledger"
	"github.com/fracshare-hq/asset-purchaser/pkg/logger"
	"github.com/fracshare-hq/asset-purchaser/pkg/wallet"
)

// Service bundles the wired purchase pipeline.
type Service struct {
	Config       *config.Config
	Logger       logger.Logger
	Ledger       *ledger.RPCClient
	Wallet       *wallet.KeypairWallet
	Backend      *backend.Client
	Breaker      *circuitbreaker.CircuitBreaker
	Orchestrator *Orchestrator
}

// NewService wires the pipeline from configuration.
func NewService(cfg *config.Config) (*Service, error) {
	log := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	w, err := wallet.NewKeypairWallet(cfg.WalletKeypairPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %v", err)
	}

	ledgerClient := ledger.NewRPCClient(cfg.RPCURL)
	backendClient := backend.New(cfg.BackendEndpoint, log)

	breaker := circuitbreaker.NewCircuitBreaker(
		cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold,
		cfg.CircuitBreaker.WindowDuration,
		cfg.CircuitBreaker.ResetTimeout,
		log,
	)

	verifier := ledger.NewBalanceVerifier(ledgerClient, cfg.StablecoinMint, cfg.StablecoinDecimals, log)
	submitter := NewSigningSubmitter(ledgerClient, w, verifier, breaker, log)
	waiter := NewConfirmationWaiter(ledgerClient, cfg.ConfirmPollInterval, log)
	orchestrator := NewOrchestrator(backendClient, submitter, waiter, w, cfg.MaxRetries, cfg.RetryBaseDelay, log)

	return &Service{
		Config:       cfg,
		Logger:       log,
		Ledger:       ledgerClient,
		Wallet:       w,
		Backend:      backendClient,
		Breaker:      breaker,
		Orchestrator: orchestrator,
	}, nil
}

// Close releases the service's resources.
func (s *Service) Close() {
	if s.Wallet != nil {
		s.Wallet.Close()
	}
}
