package purchaser

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/fracshare-hq/asset-purchaser/pkg/circuitbreaker"
	"github.com/fracshare-hq/asset-purchaser/pkg/errs"
	"github.com/fracshare-hq/asset-purchaser/pkg/ledger"
	"github.com/fracshare-hq/asset-purchaser/pkg/logger"
	"github.com/fracshare-hq/asset-purchaser/pkg/metrics"
	"github.com/fracshare-hq/asset-purchaser/pkg/models"
	"github.com/fracshare-hq/asset-purchaser/pkg/wallet"
)

// maxSubmitAttempts bounds the refresh-and-resign cycle. Checkpoint staleness
// is a race against network propagation, not a load signal, so attempts run
// back to back with no delay beyond the RPC round trip.
const maxSubmitAttempts = 3

// checkpointValiditySlack approximates the ledger's checkpoint validity
// window in blocks, used when the backend supplies the checkpoint reference
// and the window must be derived from the current height.
const checkpointValiditySlack = 150

// ErrCheckpointBudgetExhausted marks a submission that failed with a stale
// checkpoint on every attempt. The orchestrator fails the session instead of
// re-entering the backoff loop: three fresh checkpoints in a row going stale
// means the node view is lagging too far for another cycle to help.
var ErrCheckpointBudgetExhausted = errors.New("checkpoint refresh budget exhausted")

// SubmissionOutcome carries what downstream stages need from a successful
// submission.
type SubmissionOutcome struct {
	Signature  solana.Signature
	Checkpoint ledger.Checkpoint
	// Attempts is the number of sign/submit cycles that ran, including the
	// successful one.
	Attempts int
}

// SigningSubmitter drives one intent through balance verification, assembly,
// signing and submission, recovering from stale checkpoints by re-fetching a
// checkpoint and re-signing. A signature is single-use: it binds to one
// assembled transaction, and an expired checkpoint invalidates it, so every
// refresh produces a new assembly and a new wallet signature.
type SigningSubmitter struct {
	ledger  ledger.Client
	wallet  wallet.Wallet
	balance *ledger.BalanceVerifier
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger

	// observer, when set, is notified as the submitter moves through its
	// sub-stages so the session status tracks them.
	observer func(models.Status)

	mu sync.Mutex
	// lastCheckpoint is the single most-recent checkpoint a transaction was
	// signed against. Tracked for diagnostics and the confirmation window.
	lastCheckpoint ledger.Checkpoint
}

// SetStageObserver registers a callback invoked on sub-stage transitions.
func (s *SigningSubmitter) SetStageObserver(fn func(models.Status)) {
	s.observer = fn
}

func (s *SigningSubmitter) notify(status models.Status) {
	if s.observer != nil {
		s.observer(status)
	}
}

// NewSigningSubmitter creates a submitter.
func NewSigningSubmitter(lc ledger.Client, w wallet.Wallet, balance *ledger.BalanceVerifier, breaker *circuitbreaker.CircuitBreaker, log logger.Logger) *SigningSubmitter {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &SigningSubmitter{
		ledger:  lc,
		wallet:  w,
		balance: balance,
		breaker: breaker,
		logger:  log,
	}
}

// LastCheckpoint returns the checkpoint most recently used for signing.
func (s *SigningSubmitter) LastCheckpoint() ledger.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCheckpoint
}

func (s *SigningSubmitter) setLastCheckpoint(ck ledger.Checkpoint) {
	s.mu.Lock()
	s.lastCheckpoint = ck
	s.mu.Unlock()
}

// SignAndSubmit runs the full precondition/sign/submit cycle for one intent.
//
// The balance precondition runs before any wallet interaction: prompting a
// user to approve a transaction that is guaranteed to fail on-chain wastes
// their wallet-approval interaction.
func (s *SigningSubmitter) SignAndSubmit(ctx context.Context, intent *models.PurchaseIntent) (SubmissionOutcome, error) {
	const op = "submitter.sign_and_submit"

	s.notify(models.StatusVerifyingBalance)
	balance := s.balance.GetBalance(ctx, intent.BuyerAddress)
	if balance.LessThan(intent.TotalCost) {
		metrics.BalanceChecks.WithLabelValues("insufficient").Inc()
		s.logger.NoticeWithStage(logger.Balance, "Balance %s below cost %s for trade %s, failing before signing",
			balance, intent.TotalCost, intent.TradeID)
		return SubmissionOutcome{}, errs.Newf(errs.InsufficientBalance, op,
			"balance %s is below the trade cost %s", balance, intent.TotalCost)
	}
	metrics.BalanceChecks.WithLabelValues("sufficient").Inc()

	checkpoint, err := s.initialCheckpoint(ctx, intent)
	if err != nil {
		return SubmissionOutcome{}, err
	}

	for attempt := 1; ; attempt++ {
		outcome, err := s.attempt(ctx, intent, checkpoint, attempt)
		if err == nil {
			outcome.Attempts = attempt
			return outcome, nil
		}

		if !errs.Is(err, errs.StaleCheckpoint) {
			return SubmissionOutcome{}, err
		}

		if attempt >= maxSubmitAttempts {
			s.logger.ErrorWithStage(logger.Ledger, "Checkpoint went stale on all %d attempts for trade %s", attempt, intent.TradeID)
			return SubmissionOutcome{}, errs.New(errs.Timeout, op, ErrCheckpointBudgetExhausted)
		}

		metrics.CheckpointRefreshes.Inc()
		s.logger.NoticeWithStage(logger.Ledger, "Stale checkpoint for trade %s (attempt %d/%d), refreshing and re-signing",
			intent.TradeID, attempt, maxSubmitAttempts)

		checkpoint, err = s.ledger.ForceCheckpoint(ctx)
		if err != nil {
			return SubmissionOutcome{}, errs.ClassifySubmission(op, err)
		}
	}
}

// attempt runs one assemble/sign/submit cycle against the given checkpoint.
func (s *SigningSubmitter) attempt(ctx context.Context, intent *models.PurchaseIntent, checkpoint ledger.Checkpoint, attempt int) (SubmissionOutcome, error) {
	const op = "submitter.submit"

	s.notify(models.StatusAssembling)
	tx, err := AssembleTransaction(intent, checkpoint)
	if err != nil {
		return SubmissionOutcome{}, err
	}
	s.setLastCheckpoint(checkpoint)

	s.notify(models.StatusAwaitingSignature)
	signed, err := s.wallet.SignTransaction(ctx, tx)
	if err != nil {
		// UserRejected and WalletUnavailable pass through untouched.
		return SubmissionOutcome{}, err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return SubmissionOutcome{}, errs.New(errs.Validation, op, err)
	}

	s.notify(models.StatusSubmitting)
	if s.breaker != nil && s.breaker.IsEnabled() && s.breaker.IsOpen() {
		s.logger.ErrorWithStage(logger.Ledger, "Circuit breaker open, refusing to submit trade %s", intent.TradeID)
		return SubmissionOutcome{}, errs.Newf(errs.Network, op, "submission circuit breaker is open")
	}

	sig, err := s.ledger.SubmitTransaction(ctx, raw)
	if err != nil {
		classified := errs.ClassifySubmission(op, err)
		// Stale checkpoints do not count against the breaker: they indicate a
		// propagation race, not node failure.
		if s.breaker != nil && !errs.Is(classified, errs.StaleCheckpoint) {
			s.breaker.RecordFailure()
		}
		return SubmissionOutcome{}, classified
	}
	if s.breaker != nil {
		s.breaker.RecordSuccess()
	}

	s.logger.InfoWithStage(logger.Ledger, "Submitted transaction %s for trade %s (attempt %d)", sig, intent.TradeID, attempt)
	return SubmissionOutcome{Signature: sig, Checkpoint: checkpoint}, nil
}

// initialCheckpoint binds the first attempt to the backend-issued checkpoint
// reference when it parses, deriving the validity window from the current
// block height. An unparseable reference falls back to a ledger fetch.
func (s *SigningSubmitter) initialCheckpoint(ctx context.Context, intent *models.PurchaseIntent) (ledger.Checkpoint, error) {
	const op = "submitter.checkpoint"

	if intent.CheckpointReference != "" {
		blockhash, err := solana.HashFromBase58(intent.CheckpointReference)
		if err == nil {
			height, err := s.ledger.BlockHeight(ctx)
			if err != nil {
				return ledger.Checkpoint{}, errs.ClassifySubmission(op, err)
			}
			return ledger.Checkpoint{
				Blockhash:            blockhash,
				LastValidBlockHeight: height + checkpointValiditySlack,
			}, nil
		}
		s.logger.DebugWithStage(logger.Ledger, "Unparseable checkpoint reference %q for trade %s, fetching fresh: %v",
			intent.CheckpointReference, intent.TradeID, err)
	}

	checkpoint, err := s.ledger.LatestCheckpoint(ctx)
	if err != nil {
		return ledger.Checkpoint{}, errs.ClassifySubmission(op, err)
	}
	return checkpoint, nil
}
