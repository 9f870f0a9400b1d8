// Package solana provides JSON-RPC and WebSocket clients for a Solana node.
package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface the rest of the code
// depends on.
type RPCClient interface {
	// GetAccountInfo retrieves account info by public key. Returns nil when
	// the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)

	// GetBlockHeight retrieves the current block height.
	GetBlockHeight(ctx context.Context) (uint64, error)

	// GetLatestBlockhash retrieves a recent blockhash together with the last
	// block height at which it is still valid.
	GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error)

	// SendTransaction submits a base64-encoded signed transaction and
	// returns its signature.
	SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error)

	// GetSignatureStatuses looks up the confirmation status of the given
	// signatures. The result slice is index-aligned with the input; an
	// unknown signature yields a nil entry.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       string // base64 encoded
	Executable bool
	RentEpoch  uint64
}

// LatestBlockhash is the result of getLatestBlockhash.
type LatestBlockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// SignatureStatus is one entry of a getSignatureStatuses result.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	ConfirmationStatus string
	Err                interface{}
}

// Confirmed reports whether the status has reached at least the confirmed
// commitment level.
func (s *SignatureStatus) Confirmed() bool {
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}
