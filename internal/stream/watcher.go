// Package stream connects the log subscription to the event decoder and
// fans decoded events out to registered handlers.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"curvebot/internal/events"
	"curvebot/internal/observability"
	"curvebot/internal/solana"
)

// Handler receives one decoded event envelope. Handlers run on the watcher
// goroutine; slow handlers delay the feed.
type Handler func(events.Envelope)

// Watcher subscribes to a program's transaction logs and dispatches decoded
// events. Register handlers before calling Run.
type Watcher struct {
	ws         solana.WSClient
	decoder    *events.Decoder
	programID  string
	commitment string
	log        *logrus.Entry

	mu          sync.RWMutex
	handlers    map[events.Kind][]Handler
	allHandlers []Handler
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithCommitment overrides the subscription commitment level.
func WithCommitment(commitment string) WatcherOption {
	return func(w *Watcher) {
		w.commitment = commitment
	}
}

// WithDecoder sets a custom decoder.
func WithDecoder(d *events.Decoder) WatcherOption {
	return func(w *Watcher) {
		w.decoder = d
	}
}

// NewWatcher creates a Watcher for the given program. An empty programID
// falls back to the default launchpad program.
func NewWatcher(ws solana.WSClient, programID string, opts ...WatcherOption) *Watcher {
	if programID == "" {
		programID = events.DefaultProgramID
	}
	w := &Watcher{
		ws:        ws,
		decoder:   events.NewDecoder(programID),
		programID: programID,
		log:       logrus.WithField("component", "watcher"),
		handlers:  make(map[events.Kind][]Handler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// On registers a handler for one event kind.
func (w *Watcher) On(kind events.Kind, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = append(w.handlers[kind], h)
}

// OnAll registers a handler for every event kind.
func (w *Watcher) OnAll(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.allHandlers = append(w.allHandlers, h)
}

// Run subscribes and processes notifications until the context is cancelled
// or the subscription channel closes. It returns the subscription error, the
// context error on cancellation, or nil when the channel is closed by the
// client.
func (w *Watcher) Run(ctx context.Context) error {
	ch, err := w.ws.SubscribeLogs(ctx, solana.LogsFilter{
		Mentions:   []string{w.programID},
		Commitment: w.commitment,
	})
	if err != nil {
		return err
	}
	w.log.WithField("program", w.programID).Info("subscribed to program logs")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-ch:
			if !ok {
				w.log.Info("subscription channel closed")
				return nil
			}
			w.process(notif)
		}
	}
}

// process decodes one notification and dispatches its events.
func (w *Watcher) process(notif solana.LogNotification) {
	start := time.Now()
	observability.RecordNotification(notif.Slot)

	// Failed transactions still produce log notifications; their events
	// never took effect on chain.
	if notif.Failed() {
		observability.RecordFailedTxSkipped()
		return
	}

	envelopes := w.decoder.DecodeLogs(notif.Signature, notif.Slot, notif.Logs)
	for _, env := range envelopes {
		w.dispatch(env)
	}

	observability.DefaultMetrics.WSMessageLatency.Observe(time.Since(start).Seconds())
}

func (w *Watcher) dispatch(env events.Envelope) {
	w.mu.RLock()
	kindHandlers := w.handlers[env.Kind]
	allHandlers := w.allHandlers
	w.mu.RUnlock()

	for _, h := range kindHandlers {
		h(env)
	}
	for _, h := range allHandlers {
		h(env)
	}
}
