// Package wallet defines the signing capability the purchase pipeline
// consumes. The pipeline never sees key material, only the capability
// contract; wallet lifecycle events (disconnect, account switch) are
// delivered as asynchronous notifications so an in-flight session can be
// invalidated instead of silently continuing with a different signer.
package wallet

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// EventKind identifies a wallet lifecycle notification.
type EventKind int

const (
	// EventDisconnected fires when the wallet disconnects mid-flow.
	EventDisconnected EventKind = iota
	// EventAccountChanged fires when the active account switches.
	EventAccountChanged
)

// Event is a wallet lifecycle notification.
type Event struct {
	Kind    EventKind
	Address solana.PublicKey
}

// Wallet is the signing capability contract.
type Wallet interface {
	// Connected reports whether the wallet can currently sign.
	Connected() bool

	// PublicAddress returns the active account's address.
	PublicAddress() solana.PublicKey

	// SignTransaction asks the wallet to sign the assembled transaction and
	// returns the signed transaction. Fails with errs.UserRejected when the
	// user declines and errs.WalletUnavailable when the wallet disconnected.
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)

	// Notifications returns the wallet lifecycle event feed.
	Notifications() <-chan Event
}
