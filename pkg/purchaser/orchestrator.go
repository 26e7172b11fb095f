// Package purchaser implements the purchase transaction pipeline: intent
// creation, balance verification, assembly, signing, submission with
// stale-checkpoint recovery, confirmation and backend settlement.
package purchaser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/fracshare-hq/asset-purchaser/pkg/errs"
	"github.com/fracshare-hq/asset-purchaser/pkg/logger"
	"github.com/fracshare-hq/asset-purchaser/pkg/metrics"
	"github.com/fracshare-hq/asset-purchaser/pkg/models"
	"github.com/fracshare-hq/asset-purchaser/pkg/wallet"
)

// ErrPurchaseInProgress is returned when initiatePurchase is called while a
// session is already active. Re-entrant calls are rejected, never queued:
// queueing a second submission behind a double-click is how double spends
// happen.
var ErrPurchaseInProgress = errors.New("a purchase is already in progress")

// Backend is the trade backend surface the orchestrator consumes.
type Backend interface {
	CreateIntent(ctx context.Context, assetID string, amount decimal.Decimal, walletAddress solana.PublicKey) (*models.PurchaseIntent, error)
	ConfirmTrade(ctx context.Context, tradeID string, transactionReference string) (*models.SettlementRecord, error)
}

// Orchestrator sequences the purchase pipeline and owns the retry policy.
// At most one purchase session is active per instance.
type Orchestrator struct {
	backend    Backend
	submitter  *SigningSubmitter
	waiter     *ConfirmationWaiter
	wallet     wallet.Wallet
	maxRetries int
	baseDelay  time.Duration
	logger     logger.Logger

	mu      sync.Mutex
	session *models.PurchaseSession
}

// NewOrchestrator wires the pipeline components together.
func NewOrchestrator(b Backend, submitter *SigningSubmitter, waiter *ConfirmationWaiter, w wallet.Wallet, maxRetries int, baseDelay time.Duration, log logger.Logger) *Orchestrator {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	o := &Orchestrator{
		backend:    b,
		submitter:  submitter,
		waiter:     waiter,
		wallet:     w,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     log,
	}
	if submitter != nil {
		submitter.SetStageObserver(o.setStatus)
	}
	return o
}

// Session returns a copy of the current session, if any.
func (o *Orchestrator) Session() (models.PurchaseSession, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return models.PurchaseSession{}, false
	}
	return *o.session, true
}

func (o *Orchestrator) setStatus(status models.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return
	}
	o.session.Status = status
	o.session.UpdatedAt = time.Now()
}

// InitiatePurchase runs one purchase end to end and returns the terminal
// result. The returned error is non-nil only when the call is rejected
// outright (active session, invalid input); every accepted purchase produces
// exactly one PurchaseResult.
func (o *Orchestrator) InitiatePurchase(ctx context.Context, assetID string, amount decimal.Decimal) (*models.PurchaseResult, error) {
	if assetID == "" {
		return nil, errs.Newf(errs.Validation, "orchestrator.initiate", "asset id is required")
	}
	if amount.Sign() <= 0 {
		return nil, errs.Newf(errs.Validation, "orchestrator.initiate", "amount must be positive, got %s", amount)
	}

	now := time.Now()
	o.mu.Lock()
	if o.session != nil && !o.session.Status.Terminal() {
		o.mu.Unlock()
		return nil, ErrPurchaseInProgress
	}
	o.session = &models.PurchaseSession{
		AssetID:     assetID,
		TokenAmount: amount.String(),
		Status:      models.StatusCreatingIntent,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	o.mu.Unlock()

	metrics.ActiveSession.Set(1)
	defer metrics.ActiveSession.Set(0)
	defer func() {
		metrics.PurchaseDuration.Observe(time.Since(now).Seconds())
	}()

	return o.run(ctx, assetID, amount), nil
}

func (o *Orchestrator) run(ctx context.Context, assetID string, amount decimal.Decimal) *models.PurchaseResult {
	if o.wallet == nil || !o.wallet.Connected() {
		return o.fail("wallet", errs.Newf(errs.WalletUnavailable, "orchestrator.initiate", "no wallet connected"))
	}

	// Wallet lifecycle events invalidate the session, but only before the
	// transaction reaches the network: an on-chain submission cannot be
	// recalled, so confirmation and settlement run on the parent context.
	preCtx, cancelPre := context.WithCancel(ctx)
	defer cancelPre()
	walletGone := make(chan struct{})
	go o.watchWallet(preCtx, cancelPre, walletGone)

	// Stage: creatingIntent
	var intent *models.PurchaseIntent
	err := o.withRetry(preCtx, "creating_intent", func(ctx context.Context) error {
		var err error
		intent, err = o.backend.CreateIntent(ctx, assetID, amount, o.wallet.PublicAddress())
		return err
	})
	if err != nil {
		return o.fail("creating_intent", o.overrideIfWalletGone(err, walletGone))
	}
	o.mu.Lock()
	o.session.TradeID = intent.TradeID
	o.mu.Unlock()

	// Stages: verifyingBalance -> assembling -> awaitingSignature -> submitting,
	// delegated to the submitter as one unit. Each retry re-runs the whole
	// cycle; a stale signed transaction is never reused.
	var outcome SubmissionOutcome
	err = o.withRetry(preCtx, "submitting", func(ctx context.Context) error {
		var err error
		outcome, err = o.submitter.SignAndSubmit(ctx, intent)
		return err
	})
	if err != nil {
		return o.fail("submitting", o.overrideIfWalletGone(err, walletGone))
	}

	o.mu.Lock()
	o.session.TxReference = outcome.Signature.String()
	o.mu.Unlock()

	// Stage: confirming. A timeout here is an uncertain outcome, never
	// auto-retried: retrying an unconfirmed purchase risks a double charge.
	o.setStatus(models.StatusConfirming)
	if err := o.waiter.AwaitConfirmation(ctx, outcome.Signature, outcome.Checkpoint); err != nil {
		if errs.Uncertain(err) {
			return o.uncertain(intent, outcome, err)
		}
		return o.fail("confirming", err)
	}

	// Stage: settling. A failure here does not revert the on-chain effect;
	// the purchase already happened, so it is surfaced as a reconciliation
	// case for the backend rather than a failed purchase.
	o.setStatus(models.StatusSettling)
	record, err := o.backend.ConfirmTrade(ctx, intent.TradeID, outcome.Signature.String())
	if err != nil {
		metrics.SettlementReconciliations.Inc()
		o.logger.ErrorWithStage(logger.Settle, "Settlement failed for trade %s (tx %s), backend reconciliation required: %v",
			intent.TradeID, outcome.Signature, err)
		o.setStatus(models.StatusSucceeded)
		metrics.PurchasesCompleted.WithLabelValues("succeeded_unsettled").Inc()
		return &models.PurchaseResult{
			Succeeded:            true,
			TradeID:              intent.TradeID,
			TransactionReference: outcome.Signature.String(),
			Err:                  err,
		}
	}

	o.setStatus(models.StatusSucceeded)
	metrics.PurchasesCompleted.WithLabelValues("succeeded").Inc()
	o.logger.Notice("Purchase succeeded: trade %s, transaction %s", intent.TradeID, outcome.Signature)
	return &models.PurchaseResult{
		Succeeded:            true,
		TradeID:              intent.TradeID,
		TransactionReference: outcome.Signature.String(),
		Settlement:           record,
	}
}

// withRetry runs fn under the exponential backoff policy. Only retryable
// error kinds re-run; terminal kinds and an exhausted checkpoint budget
// surface immediately. Retries are silent apart from a progress notice.
func (o *Orchestrator) withRetry(ctx context.Context, stage string, fn func(context.Context) error) error {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}()

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !errs.Retryable(err) || errors.Is(err, ErrCheckpointBudgetExhausted) {
			return err
		}
		if attempt >= o.maxRetries {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * o.baseDelay
		metrics.RetryCount.WithLabelValues(stage).Inc()
		o.mu.Lock()
		if o.session != nil {
			o.session.RetryCount++
		}
		o.mu.Unlock()
		o.logger.Notice("Retrying %s (%d/%d) in %v after error: %v", stage, attempt+1, o.maxRetries, backoff, err)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
	}
}

// watchWallet invalidates the pre-submission part of the session when the
// wallet disconnects or switches accounts mid-flow.
func (o *Orchestrator) watchWallet(ctx context.Context, cancel context.CancelFunc, walletGone chan struct{}) {
	select {
	case <-ctx.Done():
		return
	case ev, ok := <-o.wallet.Notifications():
		if !ok || ev.Kind == wallet.EventDisconnected || ev.Kind == wallet.EventAccountChanged {
			close(walletGone)
			cancel()
		}
	}
}

// overrideIfWalletGone rewrites an error caused by wallet-event cancellation
// so the caller sees the real cause instead of a context error.
func (o *Orchestrator) overrideIfWalletGone(err error, walletGone <-chan struct{}) error {
	select {
	case <-walletGone:
		return errs.New(errs.WalletUnavailable, "orchestrator.wallet_watch",
			fmt.Errorf("wallet disconnected or account changed mid-session: %w", err))
	default:
		return err
	}
}

func (o *Orchestrator) fail(stage string, err error) *models.PurchaseResult {
	kind := errs.KindOf(err)
	metrics.PurchaseErrors.WithLabelValues(stage, kind.String()).Inc()
	metrics.PurchasesCompleted.WithLabelValues("failed").Inc()

	o.mu.Lock()
	o.session.Status = models.StatusFailed
	o.session.LastError = err
	o.session.UpdatedAt = time.Now()
	tradeID := o.session.TradeID
	txRef := o.session.TxReference
	o.mu.Unlock()

	// Exactly one terminal notification per failed session.
	o.logger.Error("Purchase failed during %s: %v", stage, err)

	return &models.PurchaseResult{
		Succeeded:            false,
		TradeID:              tradeID,
		TransactionReference: txRef,
		Err:                  err,
	}
}

func (o *Orchestrator) uncertain(intent *models.PurchaseIntent, outcome SubmissionOutcome, err error) *models.PurchaseResult {
	metrics.UncertainOutcomes.Inc()
	metrics.PurchasesCompleted.WithLabelValues("uncertain").Inc()

	o.mu.Lock()
	o.session.Status = models.StatusFailed
	o.session.LastError = err
	o.session.UpdatedAt = time.Now()
	o.mu.Unlock()

	o.logger.Error("Purchase outcome uncertain for trade %s (tx %s): check wallet/ledger before retrying: %v",
		intent.TradeID, outcome.Signature, err)

	return &models.PurchaseResult{
		Succeeded:            false,
		Uncertain:            true,
		TradeID:              intent.TradeID,
		TransactionReference: outcome.Signature.String(),
		Err:                  err,
	}
}
