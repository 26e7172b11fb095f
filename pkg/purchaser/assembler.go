package purchaser

import (
	"github.com/gagliardetto/solana-go"

	"github.com/fracshare-hq/asset-purchaser/pkg/errs"
	"github.com/fracshare-hq/asset-purchaser/pkg/ledger"
	"github.com/fracshare-hq/asset-purchaser/pkg/models"
)

// AssembleTransaction binds a purchase intent to a concrete checkpoint,
// producing an unsigned transaction. It is pure: identical inputs produce an
// identical transaction.
//
// Instructions are applied in intent order with their declared signer and
// writable flags verbatim. No helper instructions (compute-budget hints or
// similar) are prepended: wallets apply their own defaults, and prepending
// conflicting instructions has caused user-visible submission failures.
func AssembleTransaction(intent *models.PurchaseIntent, checkpoint ledger.Checkpoint) (*solana.Transaction, error) {
	const op = "assembler.assemble"

	if intent == nil {
		return nil, errs.Newf(errs.Validation, op, "intent is nil")
	}
	if len(intent.Instructions) == 0 {
		return nil, errs.Newf(errs.Validation, op, "intent %s has no instructions", intent.TradeID)
	}
	if checkpoint.Blockhash == (solana.Hash{}) {
		return nil, errs.Newf(errs.Validation, op, "checkpoint has no blockhash")
	}
	if intent.FeePayerAddress.IsZero() {
		return nil, errs.Newf(errs.Validation, op, "intent %s has no fee payer", intent.TradeID)
	}

	instructions := make([]solana.Instruction, 0, len(intent.Instructions))
	for _, ix := range intent.Instructions {
		accounts := make(solana.AccountMetaSlice, 0, len(ix.Accounts))
		for _, acc := range ix.Accounts {
			accounts = append(accounts, &solana.AccountMeta{
				PublicKey:  acc.Address,
				IsSigner:   acc.IsSigner,
				IsWritable: acc.IsWritable,
			})
		}
		instructions = append(instructions, solana.NewInstruction(ix.ProgramID, accounts, ix.Data))
	}

	tx, err := solana.NewTransaction(
		instructions,
		checkpoint.Blockhash,
		solana.TransactionPayer(intent.FeePayerAddress),
	)
	if err != nil {
		return nil, errs.New(errs.Validation, op, err)
	}
	return tx, nil
}
