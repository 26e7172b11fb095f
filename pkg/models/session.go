package models

import (
	"time"
)

// Status is the lifecycle state of a purchase session.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusCreatingIntent    Status = "creating_intent"
	StatusVerifyingBalance  Status = "verifying_balance"
	StatusAssembling        Status = "assembling"
	StatusAwaitingSignature Status = "awaiting_signature"
	StatusSubmitting        Status = "submitting"
	StatusConfirming        Status = "confirming"
	StatusSettling          Status = "settling"
	StatusSucceeded         Status = "succeeded"
	StatusFailed            Status = "failed"
)

// Terminal reports whether the session has finished.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// PurchaseSession is the only mutable long-lived state in the pipeline. It is
// owned exclusively by the orchestrator instance that created it; at most one
// session is active per orchestrator.
type PurchaseSession struct {
	AssetID     string
	TokenAmount string
	Status      Status
	TradeID     string
	TxReference string
	RetryCount  int
	LastError   error
	StartedAt   time.Time
	UpdatedAt   time.Time
}
