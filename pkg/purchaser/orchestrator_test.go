package purchaser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fracshare-hq/asset-purchaser/pkg/errs"
	"github.com/fracshare-hq/asset-purchaser/pkg/ledger"
	"github.com/fracshare-hq/asset-purchaser/pkg/models"
	"github.com/fracshare-hq/asset-purchaser/pkg/wallet"
)

// orchestratorHarness wires a full pipeline against mocks. The buyer holds
// 600 tokens against the standard 500 token trade cost unless a test funds
// the account differently.
type orchestratorHarness struct {
	ledger       *mockLedger
	wallet       *mockWallet
	backend      *mockBackend
	orchestrator *Orchestrator
}

func newOrchestratorHarness(t *testing.T, rawBalance uint64) *orchestratorHarness {
	t.Helper()

	w := newMockWallet()
	mint := solana.NewWallet().PublicKey()
	tokenAccount, _, err := solana.FindAssociatedTokenAddress(w.address, mint)
	require.NoError(t, err)

	ml := &mockLedger{
		accounts: map[solana.PublicKey][]byte{
			tokenAccount: tokenAccountData(rawBalance),
		},
		checkpoint: ledger.Checkpoint{Blockhash: randomHash(), LastValidBlockHeight: 1000},
		signature:  solana.Signature{0x77},
		height:     500,
	}

	mb := &mockBackend{}
	mb.createFn = func(_ context.Context, _ int, assetID string, amount decimal.Decimal, walletAddress solana.PublicKey) (*models.PurchaseIntent, error) {
		intent := newTestIntent(walletAddress, solana.NewWallet().PublicKey())
		intent.AssetID = assetID
		intent.TokenAmount = amount
		return intent, nil
	}

	verifier := ledger.NewBalanceVerifier(ml, mint, 6, nil)
	submitter := NewSigningSubmitter(ml, w, verifier, nil, nil)
	waiter := NewConfirmationWaiter(ml, time.Millisecond, nil)
	orchestrator := NewOrchestrator(mb, submitter, waiter, w, 2, time.Millisecond, nil)

	return &orchestratorHarness{
		ledger:       ml,
		wallet:       w,
		backend:      mb,
		orchestrator: orchestrator,
	}
}

func TestInitiatePurchaseHappyPath(t *testing.T) {
	h := newOrchestratorHarness(t, 600_000_000)

	var confirmedTrade, confirmedRef string
	h.backend.confirmFn = func(_ int, tradeID string, ref string) (*models.SettlementRecord, error) {
		confirmedTrade = tradeID
		confirmedRef = ref
		return &models.SettlementRecord{TradeID: tradeID, TransactionReference: ref, Status: "settled"}, nil
	}

	result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Succeeded)
	assert.False(t, result.Uncertain)
	assert.NoError(t, result.Err)
	assert.Equal(t, "TR-84921", result.TradeID)
	assert.Equal(t, solana.Signature{0x77}.String(), result.TransactionReference)
	require.NotNil(t, result.Settlement)
	assert.Equal(t, "settled", result.Settlement.Status)

	// Settlement is reported against the submitted transaction, not a fresh one.
	assert.Equal(t, result.TradeID, confirmedTrade)
	assert.Equal(t, result.TransactionReference, confirmedRef)

	session, ok := h.orchestrator.Session()
	require.True(t, ok)
	assert.Equal(t, models.StatusSucceeded, session.Status)
	assert.Equal(t, "RH-205020", session.AssetID)
	assert.Equal(t, result.TransactionReference, session.TxReference)
}

func TestInitiatePurchaseInputValidation(t *testing.T) {
	h := newOrchestratorHarness(t, 600_000_000)

	t.Run("Empty asset id", func(t *testing.T) {
		_, err := h.orchestrator.InitiatePurchase(context.Background(), "", decimal.NewFromInt(50))
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Validation))
	})

	t.Run("Zero amount", func(t *testing.T) {
		_, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.Zero)
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Validation))
	})

	t.Run("Negative amount", func(t *testing.T) {
		_, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(-5))
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Validation))
	})

	// Rejected calls never reach the backend.
	create, _ := h.backend.counts()
	assert.Equal(t, 0, create)
}

func TestInitiatePurchaseRejectsConcurrentSession(t *testing.T) {
	h := newOrchestratorHarness(t, 600_000_000)

	started := make(chan struct{})
	release := make(chan struct{})
	h.backend.createFn = func(_ context.Context, call int, assetID string, amount decimal.Decimal, walletAddress solana.PublicKey) (*models.PurchaseIntent, error) {
		if call == 1 {
			close(started)
			<-release
		}
		return newTestIntent(walletAddress, solana.NewWallet().PublicKey()), nil
	}

	type outcome struct {
		result *models.PurchaseResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
		done <- outcome{result, err}
	}()

	<-started

	// Second call while the first session is active: rejected, never queued.
	_, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
	assert.ErrorIs(t, err, ErrPurchaseInProgress)

	close(release)
	first := <-done
	require.NoError(t, first.err)
	assert.True(t, first.result.Succeeded)

	// A finished session no longer blocks new purchases.
	result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
}

func TestInitiatePurchaseInsufficientBalance(t *testing.T) {
	h := newOrchestratorHarness(t, 10_000_000) // 10 tokens, cost is 500

	result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Succeeded)
	assert.True(t, errs.Is(result.Err, errs.InsufficientBalance))
	assert.Equal(t, 0, h.wallet.signed())

	// Terminal kinds fail the stage on the first attempt.
	_, _, submit, _ := h.ledger.counts()
	assert.Equal(t, 0, submit)

	session, ok := h.orchestrator.Session()
	require.True(t, ok)
	assert.Equal(t, models.StatusFailed, session.Status)
}

func TestInitiatePurchaseRetriesTransientBackendFailure(t *testing.T) {
	h := newOrchestratorHarness(t, 600_000_000)

	h.backend.createFn = func(_ context.Context, call int, assetID string, amount decimal.Decimal, walletAddress solana.PublicKey) (*models.PurchaseIntent, error) {
		if call == 1 {
			return nil, errs.Newf(errs.Network, "backend.create_intent", "connection reset")
		}
		return newTestIntent(walletAddress, solana.NewWallet().PublicKey()), nil
	}

	result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, result.Succeeded)

	create, _ := h.backend.counts()
	assert.Equal(t, 2, create)
}

func TestInitiatePurchaseDoesNotRetryUserRejection(t *testing.T) {
	h := newOrchestratorHarness(t, 600_000_000)

	h.wallet.signFn = func(_ *solana.Transaction) (*solana.Transaction, error) {
		return nil, errs.Newf(errs.UserRejected, "wallet.sign", "user declined the signing request")
	}

	result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.True(t, errs.Is(result.Err, errs.UserRejected))
	assert.Equal(t, 1, h.wallet.signed(), "a declined prompt is never re-prompted")
}

func TestInitiatePurchaseDoesNotRetryExhaustedCheckpointBudget(t *testing.T) {
	h := newOrchestratorHarness(t, 600_000_000)

	h.ledger.submitFn = func(_ int, _ []byte) (solana.Signature, error) {
		return solana.Signature{}, errors.New("blockhash not found")
	}

	result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.True(t, errors.Is(result.Err, ErrCheckpointBudgetExhausted))

	// Three attempts inside the submitter, no outer retry on top of them.
	assert.Equal(t, 3, h.wallet.signed())
	_, _, submit, _ := h.ledger.counts()
	assert.Equal(t, 3, submit)
}

func TestInitiatePurchaseConfirmationTimeoutIsUncertain(t *testing.T) {
	h := newOrchestratorHarness(t, 600_000_000)

	// The transaction is never seen and the validity window lapses.
	h.ledger.statusFn = func(_ int) (ledger.SignatureStatus, error) {
		return ledger.SignatureStatus{Found: false}, nil
	}
	h.ledger.heightFn = func() (uint64, error) {
		return 1001, nil
	}

	result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.True(t, result.Uncertain)
	assert.True(t, errs.Is(result.Err, errs.TransactionTimeout))
	assert.Equal(t, solana.Signature{0x77}.String(), result.TransactionReference)

	// No settlement and no silent resubmission for a "don't know" outcome.
	_, confirm := h.backend.counts()
	assert.Equal(t, 0, confirm)
	_, _, submit, _ := h.ledger.counts()
	assert.Equal(t, 1, submit)
}

func TestInitiatePurchaseLedgerRejection(t *testing.T) {
	h := newOrchestratorHarness(t, 600_000_000)

	h.ledger.statusFn = func(_ int) (ledger.SignatureStatus, error) {
		return ledger.SignatureStatus{Found: true, Err: "InstructionError: insufficient funds for fee"}, nil
	}

	result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.False(t, result.Uncertain)
	assert.True(t, errs.Is(result.Err, errs.TransactionRejected))
	assert.Contains(t, result.Err.Error(), "insufficient funds for fee")
}

func TestInitiatePurchaseSettlementFailureAfterConfirmation(t *testing.T) {
	h := newOrchestratorHarness(t, 600_000_000)

	h.backend.confirmFn = func(_ int, _ string, _ string) (*models.SettlementRecord, error) {
		return nil, errs.Newf(errs.Network, "backend.confirm_trade", "connection refused")
	}

	result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
	require.NoError(t, err)

	// The on-chain purchase happened; a settlement failure is a reconciliation
	// case, not a failed purchase.
	assert.True(t, result.Succeeded)
	assert.Error(t, result.Err)
	assert.Nil(t, result.Settlement)
	assert.Equal(t, solana.Signature{0x77}.String(), result.TransactionReference)

	session, ok := h.orchestrator.Session()
	require.True(t, ok)
	assert.Equal(t, models.StatusSucceeded, session.Status)
}

func TestInitiatePurchaseWalletDisconnect(t *testing.T) {
	t.Run("Disconnected before start", func(t *testing.T) {
		h := newOrchestratorHarness(t, 600_000_000)
		h.wallet.disconnected = true

		result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
		require.NoError(t, err)
		assert.False(t, result.Succeeded)
		assert.True(t, errs.Is(result.Err, errs.WalletUnavailable))

		create, _ := h.backend.counts()
		assert.Equal(t, 0, create)
	})

	t.Run("Disconnect mid-session invalidates the purchase", func(t *testing.T) {
		h := newOrchestratorHarness(t, 600_000_000)

		// A disconnect event is already queued; intent creation blocks until
		// the watcher cancels the pre-submission context.
		h.wallet.events <- wallet.Event{Kind: wallet.EventDisconnected, Address: h.wallet.address}
		h.backend.createFn = func(ctx context.Context, _ int, _ string, _ decimal.Decimal, _ solana.PublicKey) (*models.PurchaseIntent, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
		require.NoError(t, err)
		assert.False(t, result.Succeeded)
		assert.True(t, errs.Is(result.Err, errs.WalletUnavailable))
	})

	t.Run("Account switch mid-session invalidates the purchase", func(t *testing.T) {
		h := newOrchestratorHarness(t, 600_000_000)

		h.wallet.events <- wallet.Event{Kind: wallet.EventAccountChanged, Address: solana.NewWallet().PublicKey()}
		h.backend.createFn = func(ctx context.Context, _ int, _ string, _ decimal.Decimal, _ solana.PublicKey) (*models.PurchaseIntent, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
		require.NoError(t, err)
		assert.False(t, result.Succeeded)
		assert.True(t, errs.Is(result.Err, errs.WalletUnavailable))
	})
}

func TestOrchestratorSessionTracking(t *testing.T) {
	h := newOrchestratorHarness(t, 600_000_000)

	_, ok := h.orchestrator.Session()
	assert.False(t, ok, "no session before the first purchase")

	result, err := h.orchestrator.InitiatePurchase(context.Background(), "RH-205020", decimal.NewFromInt(50))
	require.NoError(t, err)
	require.True(t, result.Succeeded)

	session, ok := h.orchestrator.Session()
	require.True(t, ok)
	assert.Equal(t, "TR-84921", session.TradeID)
	assert.Equal(t, "50", session.TokenAmount)
	assert.True(t, session.Status.Terminal())
	assert.False(t, session.UpdatedAt.Before(session.StartedAt))
}
