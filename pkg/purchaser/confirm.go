package purchaser

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/fracshare-hq/asset-purchaser/pkg/errs"
	"github.com/fracshare-hq/asset-purchaser/pkg/ledger"
	"github.com/fracshare-hq/asset-purchaser/pkg/logger"
)

// ConfirmationWaiter polls the ledger until a submitted transaction is
// finalized or its checkpoint validity window lapses.
type ConfirmationWaiter struct {
	ledger       ledger.Client
	pollInterval time.Duration
	logger       logger.Logger
}

// NewConfirmationWaiter creates a waiter polling at the given cadence.
func NewConfirmationWaiter(lc ledger.Client, pollInterval time.Duration, log logger.Logger) *ConfirmationWaiter {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &ConfirmationWaiter{
		ledger:       lc,
		pollInterval: pollInterval,
		logger:       log,
	}
}

// AwaitConfirmation blocks until the transaction is finalized, the ledger
// reports it failed, or the checkpoint's validity window lapses.
//
// A lapsed window yields TransactionTimeout: the transaction may still land,
// so this is a "don't know" outcome and must never be auto-retried. A ledger
// failure yields TransactionRejected with the reported reason verbatim.
func (w *ConfirmationWaiter) AwaitConfirmation(ctx context.Context, sig solana.Signature, checkpoint ledger.Checkpoint) error {
	const op = "confirm.await"

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errs.Newf(errs.TransactionTimeout, op,
				"confirmation of %s interrupted: %v", sig, ctx.Err())
		case <-ticker.C:
		}

		status, err := w.ledger.SignatureStatus(ctx, sig)
		if err != nil {
			// Transient status failures are absorbed: the window check below
			// still bounds the wait.
			w.logger.DebugWithStage(logger.Ledger, "Signature status poll failed for %s: %v", sig, err)
		} else {
			if status.Found && status.Err != "" {
				return errs.Newf(errs.TransactionRejected, op, "%s", status.Err)
			}
			if status.Found && status.Finalized {
				w.logger.InfoWithStage(logger.Ledger, "Transaction %s finalized", sig)
				return nil
			}
		}

		if checkpoint.LastValidBlockHeight > 0 {
			height, err := w.ledger.BlockHeight(ctx)
			if err != nil {
				w.logger.DebugWithStage(logger.Ledger, "Block height poll failed: %v", err)
				continue
			}
			if height > checkpoint.LastValidBlockHeight {
				return errs.Newf(errs.TransactionTimeout, op,
					"checkpoint validity window lapsed at height %d before %s was finalized", height, sig)
			}
		}
	}
}
