// Package ledger wraps the ledger RPC surface the purchase pipeline consumes:
// account lookups, checkpoint fetches, raw transaction submission and
// signature status polling.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Checkpoint is a short-lived reference to recent ledger state. A transaction
// built against it is only valid until the ledger passes its last valid block
// height.
type Checkpoint struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	FetchedAt            time.Time
}

// SignatureStatus is the ledger's view of a submitted transaction.
type SignatureStatus struct {
	Found     bool
	Finalized bool
	// Err carries the ledger-reported failure reason verbatim; empty when the
	// transaction did not fail.
	Err string
}

// Client is the ledger RPC surface consumed by the pipeline.
type Client interface {
	// GetAccountInfo returns the raw account record, or nil when the account
	// does not exist. A missing account is not an error.
	GetAccountInfo(ctx context.Context, address solana.PublicKey) ([]byte, error)

	// LatestCheckpoint returns a recent checkpoint, possibly cached.
	LatestCheckpoint(ctx context.Context) (Checkpoint, error)

	// ForceCheckpoint fetches a checkpoint from the ledger, bypassing any
	// cache. Used after a stale-checkpoint failure, where the cached value is
	// by definition the one that just went stale.
	ForceCheckpoint(ctx context.Context) (Checkpoint, error)

	// SubmitTransaction sends a serialized signed transaction to the network.
	SubmitTransaction(ctx context.Context, raw []byte) (solana.Signature, error)

	// SignatureStatus reports the confirmation state of a submitted transaction.
	SignatureStatus(ctx context.Context, sig solana.Signature) (SignatureStatus, error)

	// BlockHeight returns the current ledger block height.
	BlockHeight(ctx context.Context) (uint64, error)
}

// RPCClient is the rpc.Client backed implementation of Client.
type RPCClient struct {
	rpc     *rpc.Client
	rpcURL  string
	ckCache *checkpointCache
}

var _ Client = (*RPCClient)(nil)

// NewRPCClient creates a ledger client for the given RPC endpoint.
func NewRPCClient(rpcURL string) *RPCClient {
	return &RPCClient{
		rpc:     rpc.New(rpcURL),
		rpcURL:  rpcURL,
		ckCache: newCheckpointCache(2 * time.Second),
	}
}

// RPCURL returns the endpoint this client talks to.
func (c *RPCClient) RPCURL() string {
	return c.rpcURL
}

func (c *RPCClient) GetAccountInfo(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	res, err := c.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch account %s: %w", address, err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return nil, nil
	}
	return res.Value.Data.GetBinary(), nil
}

// LatestCheckpoint returns the cached checkpoint when one was fetched within
// the cache TTL, otherwise fetches a fresh one. Use ForceCheckpoint after a
// stale-checkpoint failure: the cached value is by definition the one that
// just went stale.
func (c *RPCClient) LatestCheckpoint(ctx context.Context) (Checkpoint, error) {
	if ck, ok := c.ckCache.Get(); ok {
		return ck, nil
	}
	return c.ForceCheckpoint(ctx)
}

// ForceCheckpoint fetches a checkpoint from the ledger, bypassing the cache.
func (c *RPCClient) ForceCheckpoint(ctx context.Context) (Checkpoint, error) {
	res, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to fetch latest checkpoint: %w", err)
	}
	ck := Checkpoint{
		Blockhash:            res.Value.Blockhash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
		FetchedAt:            time.Now(),
	}
	c.ckCache.Set(ck)
	return ck, nil
}

func (c *RPCClient) SubmitTransaction(ctx context.Context, raw []byte) (solana.Signature, error) {
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to submit transaction: %w", err)
	}
	return sig, nil
}

func (c *RPCClient) SignatureStatus(ctx context.Context, sig solana.Signature) (SignatureStatus, error) {
	res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return SignatureStatus{}, fmt.Errorf("failed to fetch signature status: %w", err)
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return SignatureStatus{Found: false}, nil
	}

	status := res.Value[0]
	out := SignatureStatus{Found: true}
	if status.Err != nil {
		out.Err = fmt.Sprintf("%v", status.Err)
	}
	if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		out.Finalized = true
	}
	return out, nil
}

func (c *RPCClient) BlockHeight(ctx context.Context) (uint64, error) {
	height, err := c.rpc.GetBlockHeight(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch block height: %w", err)
	}
	return height, nil
}
