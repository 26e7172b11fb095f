package config

import (
	"log"
	"time"

	"github.com/fracshare-hq/asset-purchaser/pkg/logger"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

// Config holds the configuration for the purchase orchestrator
type Config struct {
	BackendEndpoint     string
	RPCURL              string
	StablecoinMint      solana.PublicKey
	StablecoinDecimals  int32
	WalletKeypairPath   string
	MaxRetries          int
	RetryBaseDelay      time.Duration
	ConfirmPollInterval time.Duration
	MetricsPort         string
	CircuitBreaker      CircuitBreakerConfig
	LoggerConfig        LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	backendEndpoint, err := GetEnvBackendEndpoint()
	if err != nil {
		return nil, err
	}

	rpcURL, err := GetEnvRPCURL()
	if err != nil {
		return nil, err
	}

	stablecoinMint, err := GetEnvStablecoinMint()
	if err != nil {
		return nil, err
	}

	stablecoinDecimals, err := GetEnvStablecoinDecimals()
	if err != nil {
		return nil, err
	}

	walletKeypairPath, err := GetEnvWalletKeypairPath()
	if err != nil {
		return nil, err
	}

	maxRetries, err := GetEnvMaxRetries()
	if err != nil {
		return nil, err
	}

	retryBaseDelay, err := GetEnvRetryBaseDelay()
	if err != nil {
		return nil, err
	}

	confirmPollInterval, err := GetEnvConfirmPollInterval()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	return &Config{
		BackendEndpoint:     backendEndpoint,
		RPCURL:              rpcURL,
		StablecoinMint:      stablecoinMint,
		StablecoinDecimals:  stablecoinDecimals,
		WalletKeypairPath:   walletKeypairPath,
		MaxRetries:          maxRetries,
		RetryBaseDelay:      retryBaseDelay,
		ConfirmPollInterval: confirmPollInterval,
		MetricsPort:         metricsPort,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}, nil
}
