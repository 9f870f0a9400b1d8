// Command trade builds, signs, and submits a single buy or sell against a
// bonding-curve pool, then waits for confirmation.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"

	sol "github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"curvebot/internal/config"
	"curvebot/internal/events"
	"curvebot/internal/journal"
	"curvebot/internal/logging"
	"curvebot/internal/solana"
	"curvebot/internal/trading"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	mint := flag.String("mint", "", "Token mint address")
	side := flag.String("side", "buy", "Trade side: buy or sell")
	amount := flag.Float64("amount", 0, "Amount in SOL (buy) or tokens (sell)")
	minOut := flag.Uint64("min-out", 0, "Minimum acceptable output in raw units (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	logger, err := logging.Setup(cfg.Logging)
	if err != nil {
		logrus.Fatalf("setup logging: %v", err)
	}
	log := logger.WithField("component", "trade")

	order, err := parseOrder(*mint, *side, *amount, *minOut, cfg)
	if err != nil {
		log.Fatal(err)
	}

	keyStr := os.Getenv("WALLET_PRIVATE_KEY")
	if keyStr == "" {
		log.Fatal("WALLET_PRIVATE_KEY is not set")
	}
	key, err := sol.PrivateKeyFromBase58(strings.TrimSpace(keyStr))
	if err != nil {
		log.WithError(err).Fatal("parse wallet private key")
	}

	if cfg.Trade.FeeReceiver == "" {
		log.Fatal("trade.fee_receiver is not configured")
	}

	ctx := context.Background()

	rpc := solana.NewHTTPClient(cfg.RPC.HTTPEndpoint,
		solana.WithTimeout(cfg.RPC.Timeout.Std()),
		solana.WithMaxRetries(cfg.RPC.MaxRetries),
		solana.WithRateLimit(cfg.RPC.RateLimitRPS, cfg.RPC.RateLimitBurst),
	)

	builder, err := trading.NewBuilder(rpc, cfg.Watch.ProgramID, cfg.Trade.FeeReceiver,
		trading.WithComputeBudget(cfg.Trade.ComputeUnitLimit, cfg.Trade.ComputeUnitPrice),
	)
	if err != nil {
		log.WithError(err).Fatal("create builder")
	}

	instructions, err := builder.Build(ctx, key.PublicKey(), order)
	if err != nil {
		if errors.Is(err, trading.ErrPoolNotFound) {
			log.WithField("mint", order.Mint).Fatal("no bonding-curve pool exists for this mint")
		}
		log.WithError(err).Fatal("build transaction")
	}

	opts := []trading.SubmitterOption{
		trading.WithConfirmTimeout(cfg.Trade.ConfirmTimeout.Std()),
		trading.WithRebroadcastInterval(cfg.Trade.RebroadcastInterval.Std()),
	}
	if cfg.Journal.Enabled {
		pool, err := journal.NewPool(ctx, cfg.Journal.DSN)
		if err != nil {
			log.WithError(err).Fatal("connect journal database")
		}
		defer pool.Close()
		if err := journal.Migrate(ctx, pool); err != nil {
			log.WithError(err).Fatal("apply journal migrations")
		}
		opts = append(opts, trading.WithJournal(journal.NewStore(pool)))
	}

	submitter := trading.NewSubmitter(rpc, key, opts...)

	log.WithFields(logrus.Fields{
		"mint":   order.Mint,
		"side":   order.Side.String(),
		"amount": order.Amount,
	}).Info("submitting trade")

	receipt, err := submitter.Submit(ctx, order, instructions)
	if err != nil {
		reportFailure(log, err)
	}

	log.WithFields(logrus.Fields{
		"signature": receipt.Signature,
		"slot":      receipt.Slot,
		"duration":  receipt.Duration.String(),
	}).Info("trade confirmed")
}

func parseOrder(mint, side string, amount float64, minOut uint64, cfg *config.Config) (trading.Order, error) {
	if mint == "" {
		return trading.Order{}, errors.New("--mint is required")
	}
	if amount <= 0 {
		return trading.Order{}, errors.New("--amount must be greater than 0")
	}

	order := trading.Order{Mint: mint, Amount: amount, MinOut: cfg.Trade.MinOut}
	if minOut > 0 {
		order.MinOut = minOut
	}

	switch strings.ToLower(side) {
	case "buy":
		order.Side = events.SideBuy
	case "sell":
		order.Side = events.SideSell
	default:
		return trading.Order{}, errors.New("--side must be buy or sell")
	}
	return order, nil
}

// reportFailure logs the typed submission errors distinctly and exits.
func reportFailure(log *logrus.Entry, err error) {
	var sendErr *trading.SendError
	var txErr *trading.TransactionFailedError

	switch {
	case errors.As(err, &sendErr):
		log.WithError(sendErr.Err).Fatal("transaction rejected in preflight")
	case errors.As(err, &txErr):
		log.WithFields(logrus.Fields{
			"signature": txErr.Signature,
			"tx_err":    txErr.TxErr,
		}).Fatal("transaction landed but failed on chain")
	case errors.Is(err, trading.ErrBlockhashExpired):
		log.Fatal("blockhash expired before confirmation; the transaction will never land")
	case errors.Is(err, trading.ErrConfirmationTimeout):
		log.Fatal("confirmation timed out; the transaction may still land")
	default:
		log.WithError(err).Fatal("submit transaction")
	}
}
