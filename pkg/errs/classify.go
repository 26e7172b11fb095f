package errs

import (
	"context"
	"errors"
	"strings"
)

// staleCheckpointMarkers are the node error strings that indicate the
// checkpoint a transaction was signed against has fallen out of the ledger's
// recognition window. Matching is substring-based because RPC nodes embed the
// message inside JSON-RPC error payloads with varying framing.
var staleCheckpointMarkers = []string{
	"blockhash not found",
	"blockhash expired",
	"block height exceeded",
	"blockhashnotfound",
}

var networkMarkers = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"i/o timeout",
	"eof",
	"too many requests",
	"service unavailable",
	"bad gateway",
	"no response",
}

// ClassifySubmission maps a raw ledger submission failure onto the taxonomy.
// Unknown failures classify as Network so the bounded retry policy applies.
func ClassifySubmission(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(Timeout, op, err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range staleCheckpointMarkers {
		if strings.Contains(msg, marker) {
			return New(StaleCheckpoint, op, err)
		}
	}
	for _, marker := range networkMarkers {
		if strings.Contains(msg, marker) {
			return New(Network, op, err)
		}
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded") {
		return New(Timeout, op, err)
	}
	return New(Network, op, err)
}
