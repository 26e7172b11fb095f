// Package backend provides the client for the trade backend API. Intent
// creation and trade settlement share one client: both calls are made exactly
// once per invocation, with retry policy owned by the orchestrator so a retry
// never duplicates a trade record.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/fracshare-hq/asset-purchaser/pkg/errs"
	"github.com/fracshare-hq/asset-purchaser/pkg/logger"
	"github.com/fracshare-hq/asset-purchaser/pkg/models"
)

// Client is a trade backend API client
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a new trade backend client
func New(endpoint string, log logger.Logger) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: createHTTPClient(),
		logger:     log,
	}
}

// createIntentRequest is the body of POST /trade/create
type createIntentRequest struct {
	AssetID       string `json:"assetId"`
	Amount        string `json:"amount"`
	WalletAddress string `json:"walletAddress"`
}

// createIntentResponse is the envelope of POST /trade/create
type createIntentResponse struct {
	Success             bool                 `json:"success"`
	ErrorCode           string               `json:"errorCode,omitempty"`
	Message             string               `json:"message,omitempty"`
	TradeID             string               `json:"tradeId"`
	Instructions        []models.Instruction `json:"instructions"`
	CheckpointReference string               `json:"checkpointReference"`
	FeePayerAddress     solana.PublicKey     `json:"feePayerAddress"`
	TotalCost           decimal.Decimal      `json:"totalCost"`
}

// confirmTradeRequest is the body of POST /trade/confirm
type confirmTradeRequest struct {
	TradeID              string `json:"tradeId"`
	TransactionReference string `json:"transactionReference"`
}

// confirmTradeResponse is the envelope of POST /trade/confirm
type confirmTradeResponse struct {
	Success          bool                     `json:"success"`
	ErrorCode        string                   `json:"errorCode,omitempty"`
	Message          string                   `json:"message,omitempty"`
	SettlementRecord *models.SettlementRecord `json:"settlementRecord"`
}

// CreateIntent registers a purchase intent with the backend and returns the
// unsigned transaction material. The backend-provided totalCost is
// authoritative; it is never recomputed client-side.
func (c *Client) CreateIntent(ctx context.Context, assetID string, amount decimal.Decimal, walletAddress solana.PublicKey) (*models.PurchaseIntent, error) {
	const op = "backend.create_intent"

	if assetID == "" {
		return nil, errs.Newf(errs.Validation, op, "asset id is required")
	}
	if amount.Sign() <= 0 {
		return nil, errs.Newf(errs.Validation, op, "amount must be positive, got %s", amount)
	}
	if walletAddress.IsZero() {
		return nil, errs.Newf(errs.Validation, op, "wallet address is required")
	}

	reqBody := createIntentRequest{
		AssetID:       assetID,
		Amount:        amount.String(),
		WalletAddress: walletAddress.String(),
	}

	var resp createIntentResponse
	if err := c.post(ctx, op, "/trade/create", reqBody, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, envelopeError(op, resp.ErrorCode, resp.Message)
	}
	if resp.TradeID == "" {
		return nil, errs.Newf(errs.Configuration, op, "backend returned success without a trade id")
	}
	if len(resp.Instructions) == 0 {
		return nil, errs.Newf(errs.Configuration, op, "backend returned no instructions for trade %s", resp.TradeID)
	}

	c.logger.InfoWithStage(logger.Intent, "Created purchase intent %s for asset %s (cost: %s)",
		resp.TradeID, assetID, resp.TotalCost)

	return &models.PurchaseIntent{
		TradeID:             resp.TradeID,
		AssetID:             assetID,
		BuyerAddress:        walletAddress,
		TokenAmount:         amount,
		TotalCost:           resp.TotalCost,
		Instructions:        resp.Instructions,
		CheckpointReference: resp.CheckpointReference,
		FeePayerAddress:     resp.FeePayerAddress,
	}, nil
}

// ConfirmTrade reports the confirmed transaction reference back to the
// backend to finalize the trade record. The backend treats a duplicate
// (tradeId, transactionReference) pair as idempotent.
func (c *Client) ConfirmTrade(ctx context.Context, tradeID string, transactionReference string) (*models.SettlementRecord, error) {
	const op = "backend.confirm_trade"

	if tradeID == "" {
		return nil, errs.Newf(errs.Validation, op, "trade id is required")
	}
	if transactionReference == "" {
		return nil, errs.Newf(errs.Validation, op, "transaction reference is required")
	}

	reqBody := confirmTradeRequest{
		TradeID:              tradeID,
		TransactionReference: transactionReference,
	}

	var resp confirmTradeResponse
	if err := c.post(ctx, op, "/trade/confirm", reqBody, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, envelopeError(op, resp.ErrorCode, resp.Message)
	}

	record := resp.SettlementRecord
	if record == nil {
		record = &models.SettlementRecord{
			TradeID:              tradeID,
			TransactionReference: transactionReference,
			Status:               "settled",
			SettledAt:            time.Now().UTC(),
		}
	}

	c.logger.InfoWithStage(logger.Settle, "Trade %s settled with transaction %s", tradeID, transactionReference)
	return record, nil
}

// post performs one backend call. No internal retries: duplicate trade
// records are worse than a surfaced transient failure.
func (c *Client) post(ctx context.Context, op string, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.New(errs.Validation, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return errs.New(errs.Configuration, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errs.New(errs.Timeout, op, err)
		}
		return errs.New(errs.Network, op, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error("Failed to close response body: %v", closeErr)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(errs.Network, op, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return errs.Newf(errs.Network, op, "unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return errs.Newf(errs.Validation, op, "backend rejected request: %d, body: %s", resp.StatusCode, string(bodyBytes))
	case resp.StatusCode != http.StatusOK:
		return errs.Newf(errs.Configuration, op, "unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return errs.Newf(errs.Configuration, op, "failed to decode response: %v, body: %s", err, string(bodyBytes))
	}
	return nil
}

// envelopeError maps a success:false envelope onto the taxonomy. Error codes
// the backend marks as caller mistakes classify as validation; everything
// else points at backend configuration.
func envelopeError(op string, errorCode string, message string) error {
	code := strings.ToLower(errorCode)
	if strings.HasPrefix(code, "invalid") || code == "asset_not_found" || code == "amount_out_of_range" {
		return errs.Newf(errs.Validation, op, "%s: %s", errorCode, message)
	}
	return errs.Newf(errs.Configuration, op, "%s: %s", errorCode, message)
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
