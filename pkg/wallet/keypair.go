package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/fracshare-hq/asset-purchaser/pkg/errs"
)

// KeypairWallet signs with a local keypair file. It backs the CLI flow; the
// capability contract it implements is the same one a browser-extension
// bridge would satisfy.
type KeypairWallet struct {
	key    solana.PrivateKey
	mu     sync.Mutex
	closed bool
	events chan Event
}

var _ Wallet = (*KeypairWallet)(nil)

// NewKeypairWallet loads a wallet from a keygen file.
func NewKeypairWallet(path string) (*KeypairWallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet keypair from %s: %w", path, err)
	}
	return &KeypairWallet{
		key:    key,
		events: make(chan Event, 4),
	}, nil
}

func (w *KeypairWallet) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed
}

func (w *KeypairWallet) PublicAddress() solana.PublicKey {
	return w.key.PublicKey()
}

// SignTransaction signs for the keys this wallet holds. Signing is partial:
// the fee payer identity belongs to the backend, which countersigns
// server-side before the transaction is valid.
func (w *KeypairWallet) SignTransaction(_ context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return nil, errs.Newf(errs.WalletUnavailable, "wallet.sign", "wallet is disconnected")
	}

	_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.key.PublicKey()) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return nil, errs.New(errs.WalletUnavailable, "wallet.sign", err)
	}
	return tx, nil
}

func (w *KeypairWallet) Notifications() <-chan Event {
	return w.events
}

// Close disconnects the wallet and notifies subscribers.
func (w *KeypairWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	select {
	case w.events <- Event{Kind: EventDisconnected, Address: w.key.PublicKey()}:
	default:
	}
	close(w.events)
}
