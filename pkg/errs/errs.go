// Package errs defines the error taxonomy shared by the purchase pipeline.
// Each component raises its narrowest applicable kind; only the orchestrator
// decides whether a failure is retried or terminates the session.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a purchase pipeline failure.
type Kind int

const (
	// Validation indicates bad caller input. Never retried.
	Validation Kind = iota
	// Configuration indicates the backend or client is misconfigured. Never retried.
	Configuration
	// Network indicates a transient transport failure. Retried with backoff.
	Network
	// Timeout indicates a network call exceeded its deadline. Retried with backoff.
	Timeout
	// StaleCheckpoint indicates the ledger no longer recognizes the checkpoint a
	// transaction was built against. Recovered by refresh-and-resign, bounded.
	StaleCheckpoint
	// InsufficientBalance indicates the buyer cannot cover the trade cost. Terminal.
	InsufficientBalance
	// UserRejected indicates the user declined the signing prompt. Terminal.
	UserRejected
	// WalletUnavailable indicates the wallet disconnected mid-flow. Terminal.
	WalletUnavailable
	// TransactionRejected indicates the ledger rejected the transaction. Terminal,
	// with the ledger's reason surfaced verbatim.
	TransactionRejected
	// TransactionTimeout indicates confirmation was not observed inside the
	// checkpoint validity window. The transaction may still land, so callers must
	// never auto-retry on this kind.
	TransactionTimeout
)

var kindNames = map[Kind]string{
	Validation:          "validation",
	Configuration:       "configuration",
	Network:             "network",
	Timeout:             "timeout",
	StaleCheckpoint:     "stale_checkpoint",
	InsufficientBalance: "insufficient_balance",
	UserRejected:        "user_rejected",
	WalletUnavailable:   "wallet_unavailable",
	TransactionRejected: "transaction_rejected",
	TransactionTimeout:  "transaction_timeout",
}

// String returns the metrics-friendly name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a purchase pipeline error carrying its classification and the
// operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates a classified error from a formatted message.
func Newf(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from err. Unclassified errors are treated as
// network failures so the orchestrator's bounded backoff still applies.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Network
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Retryable reports whether the orchestrator may retry after err.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Network, Timeout, StaleCheckpoint:
		return true
	default:
		return false
	}
}

// Uncertain reports whether the outcome of the operation that produced err is
// unknown: the work may have landed on the ledger even though the call failed.
func Uncertain(err error) bool {
	return KindOf(err) == TransactionTimeout
}
