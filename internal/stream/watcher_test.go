package stream

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curvebot/internal/events"
	"curvebot/internal/solana"
)

// fakeWS is a scripted WSClient that replays canned notifications.
type fakeWS struct {
	ch     chan solana.LogNotification
	filter solana.LogsFilter
	subErr error
}

func newFakeWS(buffer int) *fakeWS {
	return &fakeWS{ch: make(chan solana.LogNotification, buffer)}
}

func (f *fakeWS) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.filter = filter
	return f.ch, nil
}

func (f *fakeWS) Close() error {
	close(f.ch)
	return nil
}

func phaseChangeLog(mintFill byte) string {
	buf := []byte{4}
	mint := make([]byte, 32)
	for i := range mint {
		mint[i] = mintFill
	}
	buf = append(buf, mint...)
	buf = append(buf, 0, 1)
	threshold := make([]byte, 8)
	binary.LittleEndian.PutUint64(threshold, 85_000_000_000)
	buf = append(buf, threshold...)
	return "Program data: " + base64.StdEncoding.EncodeToString(buf)
}

func TestWatcher_DispatchesByKind(t *testing.T) {
	ws := newFakeWS(4)
	w := NewWatcher(ws, "")

	var phaseChanges []events.Envelope
	var all []events.Envelope
	done := make(chan struct{})

	w.On(events.KindPhaseChange, func(env events.Envelope) {
		phaseChanges = append(phaseChanges, env)
	})
	w.On(events.KindTrade, func(env events.Envelope) {
		t.Error("no trade was published")
	})
	w.OnAll(func(env events.Envelope) {
		all = append(all, env)
		close(done)
	})

	ws.ch <- solana.LogNotification{
		Signature: "sig1",
		Slot:      42,
		Logs:      []string{"Program log: something", phaseChangeLog(7)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for dispatch")
	}
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	require.Len(t, phaseChanges, 1)
	require.Len(t, all, 1)
	assert.Equal(t, "sig1", phaseChanges[0].Signature)
	assert.Equal(t, int64(42), phaseChanges[0].Slot)
	assert.Equal(t, events.KindPhaseChange, phaseChanges[0].Kind)
}

func TestWatcher_SkipsFailedTransactions(t *testing.T) {
	ws := newFakeWS(4)
	w := NewWatcher(ws, "")

	w.OnAll(func(events.Envelope) {
		t.Error("events from failed transactions must not be dispatched")
	})

	ws.ch <- solana.LogNotification{
		Signature: "failedsig",
		Slot:      43,
		Logs:      []string{phaseChangeLog(9)},
		Err:       map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()

	// Let the watcher drain the notification, then close the feed.
	time.Sleep(100 * time.Millisecond)
	ws.Close()
	require.NoError(t, <-errCh)
}

func TestWatcher_SubscribeUsesProgramFilter(t *testing.T) {
	ws := newFakeWS(1)
	w := NewWatcher(ws, "MyProgram1111111111111111111111111111111111", WithCommitment("processed"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-errCh

	assert.Equal(t, []string{"MyProgram1111111111111111111111111111111111"}, ws.filter.Mentions)
	assert.Equal(t, "processed", ws.filter.Commitment)
}

func TestWatcher_SubscribeError(t *testing.T) {
	ws := newFakeWS(1)
	ws.subErr = assert.AnError
	w := NewWatcher(ws, "")

	err := w.Run(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
