// Command watch subscribes to the launchpad program's log stream and prints
// decoded events.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"curvebot/internal/config"
	"curvebot/internal/events"
	"curvebot/internal/logging"
	"curvebot/internal/observability"
	"curvebot/internal/solana"
	"curvebot/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	programID := flag.String("program", "", "Program ID to monitor (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	logger, err := logging.Setup(cfg.Logging)
	if err != nil {
		logrus.Fatalf("setup logging: %v", err)
	}
	log := logger.WithField("component", "watch")

	program := cfg.Watch.ProgramID
	if *programID != "" {
		program = *programID
	}
	if program == "" {
		program = events.DefaultProgramID
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(log, cfg.Metrics.Listen)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("received signal %v, shutting down", sig)
		cancel()
		select {
		case sig = <-sigCh:
			log.Warnf("received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	rpc := solana.NewHTTPClient(cfg.RPC.HTTPEndpoint,
		solana.WithTimeout(cfg.RPC.Timeout.Std()),
		solana.WithMaxRetries(cfg.RPC.MaxRetries),
		solana.WithRateLimit(cfg.RPC.RateLimitRPS, cfg.RPC.RateLimitBurst),
	)
	if slot, err := rpc.GetSlot(ctx); err != nil {
		log.WithError(err).Warn("initial getSlot failed, continuing")
	} else {
		log.WithField("slot", slot).Info("rpc endpoint reachable")
	}

	ws, err := solana.NewWSClient(ctx, cfg.RPC.WSEndpoint, nil)
	if err != nil {
		log.WithError(err).Fatal("connect websocket")
	}
	defer ws.Close()

	watcher := stream.NewWatcher(ws, program, stream.WithCommitment(cfg.Watch.Commitment))
	watcher.OnAll(func(env events.Envelope) {
		logEvent(log, env)
	})

	log.WithFields(logrus.Fields{
		"program":    program,
		"commitment": cfg.Watch.Commitment,
	}).Info("watching program logs")

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("watcher stopped")
	}
	log.Info("shutdown complete")
}

func serveMetrics(log *logrus.Entry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	log.WithField("addr", addr).Info("starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server stopped")
	}
}

func logEvent(log *logrus.Entry, env events.Envelope) {
	fields := logrus.Fields{
		"kind":      env.Kind.String(),
		"signature": env.Signature,
		"slot":      env.Slot,
	}

	switch p := env.Payload.(type) {
	case *events.PoolCreated:
		fields["mint"] = p.Mint
		fields["symbol"] = p.Symbol
		fields["creator"] = p.Creator
		fields["pool"] = p.Pool
		fields["price"] = p.Price
		fields["market_cap"] = p.MarketCap
	case *events.Trade:
		fields["mint"] = p.Mint
		fields["side"] = p.Side.String()
		fields["sol_amount"] = p.SolAmount
		fields["token_amount"] = p.TokenAmount
		fields["price"] = p.Price
		fields["market_cap"] = p.MarketCap
	case *events.PhaseChange:
		fields["mint"] = p.Mint
		fields["old_phase"] = p.OldPhase.String()
		fields["new_phase"] = p.NewPhase.String()
		fields["threshold"] = p.Threshold
	}

	log.WithFields(fields).Info("event")
}
