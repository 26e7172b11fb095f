package models

import (
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// InstructionAccount is one entry of an instruction's account access list.
// Signer/writable flags come from the backend and are applied verbatim.
type InstructionAccount struct {
	Address    solana.PublicKey `json:"address"`
	IsSigner   bool             `json:"is_signer"`
	IsWritable bool             `json:"is_writable"`
}

// Instruction is an opaque, ordered unit of on-ledger work. The payload is
// never inspected client-side; reordering instructions changes transaction
// semantics, so the slice order is preserved end to end.
type Instruction struct {
	ProgramID solana.PublicKey     `json:"program_id"`
	Accounts  []InstructionAccount `json:"accounts"`
	Data      []byte               `json:"data"`
}

// PurchaseIntent is the backend's descriptor of a pending trade. It is
// immutable once issued: a refreshed checkpoint produces a new assembled
// transaction, never a mutated intent.
type PurchaseIntent struct {
	TradeID             string           `json:"trade_id"`
	AssetID             string           `json:"asset_id"`
	BuyerAddress        solana.PublicKey `json:"buyer_address"`
	TokenAmount         decimal.Decimal  `json:"token_amount"`
	TotalCost           decimal.Decimal  `json:"total_cost"`
	Instructions        []Instruction    `json:"instructions"`
	CheckpointReference string           `json:"checkpoint_reference"`
	FeePayerAddress     solana.PublicKey `json:"fee_payer_address"`
}
