package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/fracshare-hq/asset-purchaser/pkg/logger"
	"github.com/gagliardetto/solana-go"
)

const (
	// DefaultBackendEndpoint defines the default endpoint for the trade backend
	DefaultBackendEndpoint = "https://api.fracshare.exchange"

	// DefaultRPCURL defines the default ledger RPC endpoint
	DefaultRPCURL = "https://api.mainnet-beta.solana.com"

	// DefaultStablecoinMint is the USDC mint on Solana mainnet
	DefaultStablecoinMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	// DefaultStablecoinDecimals defines the decimal precision of the stablecoin mint
	DefaultStablecoinDecimals = 6

	// DefaultMaxRetries defines the retry budget for transient intent/submission failures
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay defines the base delay in milliseconds for exponential backoff
	DefaultRetryBaseDelay = 500

	// DefaultConfirmPollInterval defines the confirmation polling cadence in milliseconds
	DefaultConfirmPollInterval = 500

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window in seconds for the circuit breaker
	DefaultCircuitBreakerWindow = 30

	// DefaultCircuitBreakerReset defines the reset timeout in seconds for the circuit breaker
	DefaultCircuitBreakerReset = 60
)

// GetEnvBackendEndpoint returns the trade backend endpoint from environment variables
func GetEnvBackendEndpoint() (string, error) {
	endpoint := os.Getenv("BACKEND_ENDPOINT")
	if endpoint == "" {
		return DefaultBackendEndpoint, nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return "", fmt.Errorf("invalid BACKEND_ENDPOINT value: %s, must be a valid URL", endpoint)
	}
	return endpoint, nil
}

// GetEnvRPCURL returns the ledger RPC endpoint from environment variables
func GetEnvRPCURL() (string, error) {
	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		return DefaultRPCURL, nil
	}

	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return "", fmt.Errorf("invalid RPC_URL value: %s, must be a valid URL", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvStablecoinMint returns the stablecoin mint address from environment variables
func GetEnvStablecoinMint() (solana.PublicKey, error) {
	mint := os.Getenv("STABLECOIN_MINT")
	if mint == "" {
		mint = DefaultStablecoinMint
	}

	pubkey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid STABLECOIN_MINT value: %s, must be a valid base58 address", mint)
	}
	return pubkey, nil
}

// GetEnvStablecoinDecimals returns the stablecoin decimal precision from environment variables
func GetEnvStablecoinDecimals() (int32, error) {
	decimals := os.Getenv("STABLECOIN_DECIMALS")
	if decimals == "" {
		return DefaultStablecoinDecimals, nil
	}

	decimalsInt, err := strconv.Atoi(decimals)
	if err != nil {
		return 0, fmt.Errorf("invalid STABLECOIN_DECIMALS value: %s, must be an integer", decimals)
	}
	if decimalsInt < 0 || decimalsInt > 18 {
		return 0, fmt.Errorf("STABLECOIN_DECIMALS must be between 0 and 18")
	}
	return int32(decimalsInt), nil
}

// GetEnvWalletKeypairPath returns the wallet keypair file path from environment variables
func GetEnvWalletKeypairPath() (string, error) {
	path := os.Getenv("WALLET_KEYPAIR_PATH")
	if path == "" {
		return "", fmt.Errorf("WALLET_KEYPAIR_PATH is required")
	}
	return path, nil
}

// GetEnvMaxRetries returns the maximum number of retries from environment variables
func GetEnvMaxRetries() (int, error) {
	maxRetries := os.Getenv("MAX_RETRIES")
	if maxRetries == "" {
		return DefaultMaxRetries, nil
	}

	maxRetriesInt, err := strconv.Atoi(maxRetries)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_RETRIES value: %s, must be an integer", maxRetries)
	}
	if maxRetriesInt < 0 {
		return 0, fmt.Errorf("MAX_RETRIES must be greater than or equal to 0")
	}
	return maxRetriesInt, nil
}

// GetEnvRetryBaseDelay returns the backoff base delay from environment variables
func GetEnvRetryBaseDelay() (time.Duration, error) {
	delay := os.Getenv("RETRY_BASE_DELAY_MS")
	if delay == "" {
		return DefaultRetryBaseDelay * time.Millisecond, nil
	}

	delayInt, err := strconv.Atoi(delay)
	if err != nil {
		return 0, fmt.Errorf("invalid RETRY_BASE_DELAY_MS value: %s, must be an integer", delay)
	}
	if delayInt <= 0 {
		return 0, fmt.Errorf("RETRY_BASE_DELAY_MS must be greater than 0")
	}
	return time.Duration(delayInt) * time.Millisecond, nil
}

// GetEnvConfirmPollInterval returns the confirmation polling cadence from environment variables
func GetEnvConfirmPollInterval() (time.Duration, error) {
	interval := os.Getenv("CONFIRM_POLL_INTERVAL_MS")
	if interval == "" {
		return DefaultConfirmPollInterval * time.Millisecond, nil
	}

	intervalInt, err := strconv.Atoi(interval)
	if err != nil {
		return 0, fmt.Errorf("invalid CONFIRM_POLL_INTERVAL_MS value: %s, must be an integer", interval)
	}
	if intervalInt <= 0 {
		return 0, fmt.Errorf("CONFIRM_POLL_INTERVAL_MS must be greater than 0")
	}
	return time.Duration(intervalInt) * time.Millisecond, nil
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return logger.InfoLevel, nil
	}

	switch level {
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of 'debug', 'info', 'notice', 'error'", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}
