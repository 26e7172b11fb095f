package models

import (
	"time"
)

// SettlementRecord is the backend's acknowledgement that a confirmed on-chain
// transaction corresponds to a trade record.
type SettlementRecord struct {
	TradeID              string    `json:"trade_id"`
	TransactionReference string    `json:"transaction_reference"`
	Status               string    `json:"status"`
	SettledAt            time.Time `json:"settled_at"`
}

// PurchaseResult is the single terminal status emitted to the caller.
type PurchaseResult struct {
	Succeeded            bool
	TradeID              string
	TransactionReference string
	Settlement           *SettlementRecord
	// Uncertain is set when confirmation timed out: the transaction may still
	// land, so the caller must check the wallet/ledger before retrying.
	Uncertain bool
	Err       error
}
