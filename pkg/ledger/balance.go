package ledger

import (
	"context"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"

	"github.com/fracshare-hq/asset-purchaser/pkg/logger"
)

// amountOffset is where the little-endian u64 amount sits in a token account
// record: 32 bytes mint + 32 bytes owner precede it.
const amountOffset = 64

// BalanceVerifier reports a wallet's stablecoin holdings. The check is
// advisory pre-validation, not a security boundary: the ledger enforces the
// authoritative balance at submission time, so every decode failure degrades
// to a zero balance instead of surfacing an error.
type BalanceVerifier struct {
	client   Client
	mint     solana.PublicKey
	decimals int32
	logger   logger.Logger
}

// NewBalanceVerifier creates a balance verifier for the given stablecoin mint.
func NewBalanceVerifier(client Client, mint solana.PublicKey, decimals int32, log logger.Logger) *BalanceVerifier {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &BalanceVerifier{
		client:   client,
		mint:     mint,
		decimals: decimals,
		logger:   log,
	}
}

// GetBalance returns the wallet's stablecoin balance in whole token units.
// A wallet without a token account is a valid, expected state and reports
// zero. Decode failures also report zero with a diagnostic; this method never
// returns an error to the caller.
func (v *BalanceVerifier) GetBalance(ctx context.Context, wallet solana.PublicKey) decimal.Decimal {
	tokenAccount, _, err := solana.FindAssociatedTokenAddress(wallet, v.mint)
	if err != nil {
		v.logger.ErrorWithStage(logger.Balance, "Failed to derive token account for %s: %v", wallet, err)
		return decimal.Zero
	}

	data, err := v.client.GetAccountInfo(ctx, tokenAccount)
	if err != nil {
		v.logger.ErrorWithStage(logger.Balance, "Failed to fetch token account %s: %v", tokenAccount, err)
		return decimal.Zero
	}
	if data == nil {
		// Unfunded wallet: no token account exists yet.
		v.logger.DebugWithStage(logger.Balance, "No token account for wallet %s, treating balance as zero", wallet)
		return decimal.Zero
	}

	raw, ok := v.decodeAmount(data)
	if !ok {
		v.logger.ErrorWithStage(logger.Balance, "Undecodable token account record for %s (%d bytes), treating balance as zero", tokenAccount, len(data))
		return decimal.Zero
	}

	return decimal.NewFromUint64(raw).Shift(-v.decimals)
}

// decodeAmount extracts the raw token amount from an account record, trying
// the structured layout decoder first and falling back to fixed-offset
// decoding of the little-endian amount field.
func (v *BalanceVerifier) decodeAmount(data []byte) (uint64, bool) {
	var account token.Account
	if err := bin.NewBinDecoder(data).Decode(&account); err == nil {
		return account.Amount, true
	} else {
		v.logger.DebugWithStage(logger.Balance, "Structured token account decode failed, falling back to fixed-offset decode: %v", err)
	}

	if len(data) >= amountOffset+8 {
		return binary.LittleEndian.Uint64(data[amountOffset : amountOffset+8]), true
	}

	return 0, false
}
