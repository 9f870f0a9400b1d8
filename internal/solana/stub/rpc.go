// Package stub provides in-memory fakes for the solana interfaces.
package stub

import (
	"context"
	"sync"

	"curvebot/internal/solana"
)

// RPCClient implements solana.RPCClient for testing. All fields are guarded
// by an internal mutex so tests can drive it from multiple goroutines.
type RPCClient struct {
	mu sync.Mutex

	Accounts    map[string]*solana.AccountInfo
	Statuses    map[string]*solana.SignatureStatus
	Blockhash   solana.LatestBlockhash
	Slot        int64
	BlockHeight uint64

	// NextSignature is returned by SendTransaction.
	NextSignature string

	// SendErr, when set, is returned by SendTransaction calls that run
	// preflight (skipPreflight false).
	SendErr error

	// Sent records every SendTransaction call.
	Sent []SentTx
}

// SentTx is one recorded SendTransaction call.
type SentTx struct {
	TxBase64      string
	SkipPreflight bool
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:      make(map[string]*solana.AccountInfo),
		Statuses:      make(map[string]*solana.SignatureStatus),
		Blockhash:     solana.LatestBlockhash{Blockhash: "11111111111111111111111111111111", LastValidBlockHeight: 1000},
		NextSignature: "stubsig",
	}
}

// GetAccountInfo returns the stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Accounts[pubkey], nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Slot, nil
}

// GetBlockHeight returns the configured block height.
func (c *RPCClient) GetBlockHeight(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.BlockHeight, nil
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.LatestBlockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bh := c.Blockhash
	return &bh, nil
}

// SendTransaction records the call and returns the configured signature.
func (c *RPCClient) SendTransaction(_ context.Context, txBase64 string, skipPreflight bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, SentTx{TxBase64: txBase64, SkipPreflight: skipPreflight})
	if !skipPreflight && c.SendErr != nil {
		return "", c.SendErr
	}
	return c.NextSignature, nil
}

// GetSignatureStatuses returns stored statuses, index-aligned with the input.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	statuses := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		statuses[i] = c.Statuses[sig]
	}
	return statuses, nil
}

// SetStatus stores a status for a signature.
func (c *RPCClient) SetStatus(sig string, status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[sig] = status
}

// SentCount returns how many transactions were sent.
func (c *RPCClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}
