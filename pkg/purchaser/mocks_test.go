package purchaser

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/fracshare-hq/asset-purchaser/pkg/ledger"
	"github.com/fracshare-hq/asset-purchaser/pkg/models"
	"github.com/fracshare-hq/asset-purchaser/pkg/wallet"
)

// mockLedger is a test double for the ledger client. Behavior is overridden
// per test through the function fields; call counts are tracked for every
// method.
type mockLedger struct {
	mu sync.Mutex

	accounts   map[solana.PublicKey][]byte
	checkpoint ledger.Checkpoint
	signature  solana.Signature
	height     uint64

	latestFn func() (ledger.Checkpoint, error)
	forceFn  func(call int) (ledger.Checkpoint, error)
	submitFn func(call int, raw []byte) (solana.Signature, error)
	statusFn func(call int) (ledger.SignatureStatus, error)
	heightFn func() (uint64, error)

	latestCalls int
	forceCalls  int
	submitCalls int
	statusCalls int
}

var _ ledger.Client = (*mockLedger)(nil)

func (m *mockLedger) GetAccountInfo(_ context.Context, address solana.PublicKey) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[address], nil
}

func (m *mockLedger) LatestCheckpoint(_ context.Context) (ledger.Checkpoint, error) {
	m.mu.Lock()
	m.latestCalls++
	fn := m.latestFn
	ck := m.checkpoint
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return ck, nil
}

func (m *mockLedger) ForceCheckpoint(_ context.Context) (ledger.Checkpoint, error) {
	m.mu.Lock()
	m.forceCalls++
	call := m.forceCalls
	fn := m.forceFn
	ck := m.checkpoint
	m.mu.Unlock()

	if fn != nil {
		return fn(call)
	}
	return ck, nil
}

func (m *mockLedger) SubmitTransaction(_ context.Context, raw []byte) (solana.Signature, error) {
	m.mu.Lock()
	m.submitCalls++
	call := m.submitCalls
	fn := m.submitFn
	sig := m.signature
	m.mu.Unlock()

	if fn != nil {
		return fn(call, raw)
	}
	return sig, nil
}

func (m *mockLedger) SignatureStatus(_ context.Context, _ solana.Signature) (ledger.SignatureStatus, error) {
	m.mu.Lock()
	m.statusCalls++
	call := m.statusCalls
	fn := m.statusFn
	m.mu.Unlock()

	if fn != nil {
		return fn(call)
	}
	return ledger.SignatureStatus{Found: true, Finalized: true}, nil
}

func (m *mockLedger) BlockHeight(_ context.Context) (uint64, error) {
	m.mu.Lock()
	fn := m.heightFn
	height := m.height
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return height, nil
}

func (m *mockLedger) counts() (latest, force, submit, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestCalls, m.forceCalls, m.submitCalls, m.statusCalls
}

// mockWallet is a test double for the signing capability. The default sign
// behavior fills placeholder signatures so the transaction serializes.
type mockWallet struct {
	mu sync.Mutex

	disconnected bool
	address      solana.PublicKey
	signFn       func(tx *solana.Transaction) (*solana.Transaction, error)
	signCalls    int
	events       chan wallet.Event
}

var _ wallet.Wallet = (*mockWallet)(nil)

func newMockWallet() *mockWallet {
	return &mockWallet{
		address: solana.NewWallet().PublicKey(),
		events:  make(chan wallet.Event, 4),
	}
}

func (m *mockWallet) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.disconnected
}

func (m *mockWallet) PublicAddress() solana.PublicKey {
	return m.address
}

func (m *mockWallet) SignTransaction(_ context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	m.mu.Lock()
	m.signCalls++
	fn := m.signFn
	m.mu.Unlock()

	if fn != nil {
		return fn(tx)
	}
	placeholderSign(tx)
	return tx, nil
}

func (m *mockWallet) Notifications() <-chan wallet.Event {
	return m.events
}

func (m *mockWallet) signed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signCalls
}

// placeholderSign fills the signature slots without real key material so
// MarshalBinary accepts the transaction.
func placeholderSign(tx *solana.Transaction) {
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
}

// mockBackend is a test double for the trade backend.
type mockBackend struct {
	mu sync.Mutex

	createFn  func(ctx context.Context, call int, assetID string, amount decimal.Decimal, walletAddress solana.PublicKey) (*models.PurchaseIntent, error)
	confirmFn func(call int, tradeID string, transactionReference string) (*models.SettlementRecord, error)

	createCalls  int
	confirmCalls int
}

var _ Backend = (*mockBackend)(nil)

func (m *mockBackend) CreateIntent(ctx context.Context, assetID string, amount decimal.Decimal, walletAddress solana.PublicKey) (*models.PurchaseIntent, error) {
	m.mu.Lock()
	m.createCalls++
	call := m.createCalls
	fn := m.createFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, call, assetID, amount, walletAddress)
	}
	return nil, nil
}

func (m *mockBackend) ConfirmTrade(_ context.Context, tradeID string, transactionReference string) (*models.SettlementRecord, error) {
	m.mu.Lock()
	m.confirmCalls++
	call := m.confirmCalls
	fn := m.confirmFn
	m.mu.Unlock()

	if fn != nil {
		return fn(call, tradeID, transactionReference)
	}
	return &models.SettlementRecord{TradeID: tradeID, TransactionReference: transactionReference, Status: "settled"}, nil
}

func (m *mockBackend) counts() (create, confirm int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls, m.confirmCalls
}

// tokenAccountData builds a token account record with the raw amount at the
// ledger's fixed offset.
func tokenAccountData(raw uint64) []byte {
	data := make([]byte, 165)
	binary.LittleEndian.PutUint64(data[64:72], raw)
	return data
}

func randomHash() solana.Hash {
	return solana.Hash(solana.NewWallet().PublicKey())
}

// newTestIntent builds an intent in the shape the backend issues: one opaque
// instruction touching the buyer as a signer plus a read-only market account.
func newTestIntent(buyer solana.PublicKey, feePayer solana.PublicKey) *models.PurchaseIntent {
	return &models.PurchaseIntent{
		TradeID:      "TR-84921",
		AssetID:      "RH-205020",
		BuyerAddress: buyer,
		TokenAmount:  decimal.NewFromInt(50),
		TotalCost:    decimal.NewFromInt(500),
		Instructions: []models.Instruction{
			{
				ProgramID: solana.NewWallet().PublicKey(),
				Accounts: []models.InstructionAccount{
					{Address: buyer, IsSigner: true, IsWritable: true},
					{Address: solana.NewWallet().PublicKey(), IsSigner: false, IsWritable: false},
				},
				Data: []byte{0x01, 0x02, 0x03, 0x04},
			},
		},
		FeePayerAddress: feePayer,
	}
}
