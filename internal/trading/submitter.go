package trading

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"curvebot/internal/journal"
	"curvebot/internal/observability"
	solrpc "curvebot/internal/solana"
)

// Default submission timings.
const (
	DefaultRebroadcastInterval = 2 * time.Second
	DefaultConfirmTimeout      = 60 * time.Second
	DefaultPollInterval        = 1 * time.Second
)

// Journal records submission attempts and their terminal outcomes. A nil
// journal disables recording.
type Journal interface {
	Insert(ctx context.Context, sub *journal.Submission) error
	MarkOutcome(ctx context.Context, signature string, status journal.Status, txErr string) error
}

// Receipt is the successful outcome of a Submit call.
type Receipt struct {
	Signature string
	Slot      uint64
	Duration  time.Duration
}

// Submitter signs a transaction once and drives it to a terminal outcome:
// one preflighted send, then periodic preflight-free rebroadcasts of the
// same bytes racing a confirmation poll.
type Submitter struct {
	rpc     solrpc.RPCClient
	key     solana.PrivateKey
	journal Journal
	log     *logrus.Entry

	rebroadcastEvery time.Duration
	confirmTimeout   time.Duration
	pollEvery        time.Duration
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithRebroadcastInterval overrides the rebroadcast period.
func WithRebroadcastInterval(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.rebroadcastEvery = d
	}
}

// WithConfirmTimeout overrides the overall confirmation deadline.
func WithConfirmTimeout(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.confirmTimeout = d
	}
}

// WithPollInterval overrides the confirmation poll period.
func WithPollInterval(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.pollEvery = d
	}
}

// WithJournal attaches a submission journal.
func WithJournal(j Journal) SubmitterOption {
	return func(s *Submitter) {
		s.journal = j
	}
}

// NewSubmitter creates a Submitter signing with the given key.
func NewSubmitter(rpc solrpc.RPCClient, key solana.PrivateKey, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		rpc:              rpc,
		key:              key,
		log:              logrus.WithField("component", "submitter"),
		rebroadcastEvery: DefaultRebroadcastInterval,
		confirmTimeout:   DefaultConfirmTimeout,
		pollEvery:        DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit signs and sends the instruction list, then waits for a terminal
// outcome. The rebroadcaster is always stopped before Submit returns.
func (s *Submitter) Submit(ctx context.Context, order Order, instructions []solana.Instruction) (*Receipt, error) {
	start := time.Now()

	bh, err := s.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}
	blockhash, err := solana.HashFromBase58(bh.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("parse blockhash %q: %w", bh.Blockhash, err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(s.key.PublicKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	txBase64 := base64.StdEncoding.EncodeToString(raw)

	// First send runs full preflight; a rejection here means the
	// transaction itself is bad and retrying the same bytes is pointless.
	signature, err := s.rpc.SendTransaction(ctx, txBase64, false)
	if err != nil {
		observability.RecordSubmission("send_failed", time.Since(start).Seconds())
		return nil, &SendError{Err: err}
	}

	s.log.WithFields(logrus.Fields{
		"signature":         signature,
		"last_valid_height": bh.LastValidBlockHeight,
	}).Info("transaction submitted")
	s.journalInsert(ctx, order, signature)

	rbCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.rebroadcast(rbCtx, txBase64)
	}()
	// The rebroadcaster must never outlive this call.
	defer func() {
		cancel()
		wg.Wait()
	}()

	receipt, err := s.awaitConfirmation(ctx, signature, bh.LastValidBlockHeight)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		receipt.Duration = elapsed
		observability.RecordSubmission("confirmed", elapsed.Seconds())
		s.journalOutcome(ctx, signature, journal.StatusConfirmed, "")
		s.log.WithFields(logrus.Fields{
			"signature": signature,
			"slot":      receipt.Slot,
			"elapsed":   elapsed,
		}).Info("transaction confirmed")
	case errors.As(err, new(*TransactionFailedError)):
		observability.RecordSubmission("failed", elapsed.Seconds())
		s.journalOutcome(ctx, signature, journal.StatusFailed, err.Error())
	case errors.Is(err, ErrBlockhashExpired):
		observability.RecordSubmission("expired", elapsed.Seconds())
		s.journalOutcome(ctx, signature, journal.StatusExpired, err.Error())
	case errors.Is(err, ErrConfirmationTimeout):
		observability.RecordSubmission("timeout", elapsed.Seconds())
		s.journalOutcome(ctx, signature, journal.StatusTimeout, err.Error())
	}

	return receipt, err
}

// rebroadcast resends the already-signed bytes until cancelled. Send errors
// are expected once the transaction lands or its blockhash expires and are
// swallowed.
func (s *Submitter) rebroadcast(ctx context.Context, txBase64 string) {
	ticker := time.NewTicker(s.rebroadcastEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.rpc.SendTransaction(ctx, txBase64, true); err != nil {
				s.log.WithError(err).Debug("rebroadcast send error")
			}
			observability.RecordRebroadcast()
		}
	}
}

// awaitConfirmation polls signature status until the transaction resolves,
// its blockhash expires, or the confirmation timeout elapses.
func (s *Submitter) awaitConfirmation(ctx context.Context, signature string, lastValidHeight uint64) (*Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrConfirmationTimeout
		case <-ticker.C:
		}

		statuses, err := s.rpc.GetSignatureStatuses(waitCtx, []string{signature})
		if err != nil {
			s.log.WithError(err).Debug("status poll error")
			continue
		}

		if len(statuses) > 0 && statuses[0] != nil {
			status := statuses[0]
			if status.Err != nil {
				return nil, &TransactionFailedError{Signature: signature, TxErr: status.Err}
			}
			if status.Confirmed() {
				return &Receipt{Signature: signature, Slot: status.Slot}, nil
			}
			continue
		}

		// Unknown signature: check whether the blockhash can still land.
		height, err := s.rpc.GetBlockHeight(waitCtx)
		if err != nil {
			continue
		}
		if height > lastValidHeight {
			return nil, ErrBlockhashExpired
		}
	}
}

func (s *Submitter) journalInsert(ctx context.Context, order Order, signature string) {
	if s.journal == nil {
		return
	}
	sub := &journal.Submission{
		Signature: signature,
		Mint:      order.Mint,
		Side:      order.Side.String(),
		Amount:    order.Amount,
		Status:    journal.StatusSubmitted,
	}
	if err := s.journal.Insert(ctx, sub); err != nil {
		s.log.WithError(err).Warn("journal insert failed")
	}
}

func (s *Submitter) journalOutcome(ctx context.Context, signature string, status journal.Status, txErr string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.MarkOutcome(ctx, signature, status, txErr); err != nil {
		s.log.WithError(err).Warn("journal outcome update failed")
	}
}
