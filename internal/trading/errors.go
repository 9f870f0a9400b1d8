package trading

import (
	"errors"
	"fmt"
)

// ErrPoolNotFound reports that the bonding-curve account for the requested
// mint does not exist on chain. Fatal to the call; nothing was sent.
var ErrPoolNotFound = errors.New("trading: pool account not found")

// ErrBlockhashExpired reports that the chain moved past the blockhash's last
// valid height before the transaction confirmed.
var ErrBlockhashExpired = errors.New("trading: blockhash expired before confirmation")

// ErrConfirmationTimeout reports that the confirmation wait ran out of time
// with the transaction still unresolved.
var ErrConfirmationTimeout = errors.New("trading: confirmation timeout")

// SendError wraps a fatal initial-send failure. The transaction never made
// it past preflight; it is not retried.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("trading: send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// TransactionFailedError reports a transaction that confirmed but was
// rejected by the ledger. TxErr carries the node's error payload verbatim.
type TransactionFailedError struct {
	Signature string
	TxErr     interface{}
}

func (e *TransactionFailedError) Error() string {
	return fmt.Sprintf("trading: transaction %s failed on chain: %v", e.Signature, e.TxErr)
}
