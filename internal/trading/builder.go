// Package trading builds and submits buy/sell transactions against a
// launchpad bonding-curve program.
package trading

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"curvebot/internal/events"
	"curvebot/internal/pda"
	solrpc "curvebot/internal/solana"
)

const (
	systemProgram = "11111111111111111111111111111111"
	poolSeed      = "bonding_curve"

	// Domain instruction discriminants.
	discBuy  = 1
	discSell = 2

	// Creator address location inside the pool account data.
	creatorOffset = 32
	creatorLen    = 32

	lamportsPerSol = 1_000_000_000
	rawPerToken    = 1_000_000

	// ataCreateIdempotent is the instruction tag of the associated token
	// program's idempotent create variant.
	ataCreateIdempotent = 1

	DefaultComputeUnitLimit = uint32(120_000)
	DefaultComputeUnitPrice = uint64(100_000) // micro-lamports per CU
)

// Order is a caller's trade intent. Amount is whole SOL for a buy and whole
// tokens for a sell; conversion to native units happens in the builder.
type Order struct {
	Mint   string
	Side   events.Side
	Amount float64

	// MinOut is the native-unit slippage floor. Zero disables it.
	MinOut uint64
}

// Builder assembles the instruction list for an Order.
type Builder struct {
	rpc         solrpc.RPCClient
	programID   solana.PublicKey
	feeReceiver solana.PublicKey
	cuLimit     uint32
	cuPrice     uint64
	log         *logrus.Entry
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithComputeBudget overrides the compute-unit limit and price attached to
// every trade.
func WithComputeBudget(limit uint32, priceMicroLamports uint64) BuilderOption {
	return func(b *Builder) {
		b.cuLimit = limit
		b.cuPrice = priceMicroLamports
	}
}

// NewBuilder creates a Builder. An empty programID falls back to the default
// launchpad program; feeReceiver is required.
func NewBuilder(rpc solrpc.RPCClient, programID, feeReceiver string, opts ...BuilderOption) (*Builder, error) {
	if programID == "" {
		programID = events.DefaultProgramID
	}
	program, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("parse program id: %w", err)
	}
	receiver, err := solana.PublicKeyFromBase58(feeReceiver)
	if err != nil {
		return nil, fmt.Errorf("parse fee receiver: %w", err)
	}

	b := &Builder{
		rpc:         rpc,
		programID:   program,
		feeReceiver: receiver,
		cuLimit:     DefaultComputeUnitLimit,
		cuPrice:     DefaultComputeUnitPrice,
		log:         logrus.WithField("component", "builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build resolves all accounts for the order and returns the ordered
// instruction list: compute budget limit, compute budget price, idempotent
// token-account creation (buy only), then the trade instruction.
func (b *Builder) Build(ctx context.Context, signer solana.PublicKey, order Order) ([]solana.Instruction, error) {
	mintBytes, err := base58.Decode(order.Mint)
	if err != nil || len(mintBytes) != 32 {
		return nil, fmt.Errorf("invalid mint %q", order.Mint)
	}

	pool, ok := pda.Derive(b.programID.String(), []byte(poolSeed), mintBytes)
	if !ok {
		return nil, fmt.Errorf("derive pool for mint %s: no valid bump", order.Mint)
	}

	poolTokenAccount, ok := pda.AssociatedTokenAddress(pool, order.Mint)
	if !ok {
		return nil, fmt.Errorf("derive pool token account for %s", pool)
	}
	userTokenAccount, ok := pda.AssociatedTokenAddress(signer.String(), order.Mint)
	if !ok {
		return nil, fmt.Errorf("derive user token account for %s", signer)
	}

	creator, err := b.fetchCreator(ctx, pool)
	if err != nil {
		return nil, err
	}

	b.log.WithFields(logrus.Fields{
		"mint":    order.Mint,
		"pool":    pool,
		"creator": creator,
		"side":    order.Side.String(),
	}).Debug("resolved trade accounts")

	var instructions []solana.Instruction

	cuLimitIx, err := computebudget.NewSetComputeUnitLimitInstruction(b.cuLimit).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build compute unit limit instruction: %w", err)
	}
	instructions = append(instructions, cuLimitIx)

	cuPriceIx, err := computebudget.NewSetComputeUnitPriceInstruction(b.cuPrice).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build compute unit price instruction: %w", err)
	}
	instructions = append(instructions, cuPriceIx)

	// Selling requires an existing token account; only the buy path may be
	// the caller's first touch of this mint.
	if order.Side == events.SideBuy {
		ataIx, err := b.createTokenAccountIdempotent(signer, userTokenAccount, order.Mint)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, ataIx)
	}

	tradeIx, err := b.tradeInstruction(signer, order, pool, poolTokenAccount, userTokenAccount, creator)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, tradeIx)

	return instructions, nil
}

// fetchCreator reads the creator address out of the pool account data.
func (b *Builder) fetchCreator(ctx context.Context, pool string) (string, error) {
	info, err := b.rpc.GetAccountInfo(ctx, pool)
	if err != nil {
		return "", fmt.Errorf("fetch pool account %s: %w", pool, err)
	}
	if info == nil {
		return "", fmt.Errorf("%w: %s", ErrPoolNotFound, pool)
	}

	data, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return "", fmt.Errorf("decode pool account data: %w", err)
	}
	if len(data) < creatorOffset+creatorLen {
		return "", fmt.Errorf("pool account %s data too short: %d bytes", pool, len(data))
	}

	return base58.Encode(data[creatorOffset : creatorOffset+creatorLen]), nil
}

// createTokenAccountIdempotent builds the associated-token-program create
// instruction that is a no-op when the account already exists.
func (b *Builder) createTokenAccountIdempotent(payer solana.PublicKey, tokenAccount, mint string) (solana.Instruction, error) {
	ata, err := solana.PublicKeyFromBase58(tokenAccount)
	if err != nil {
		return nil, fmt.Errorf("parse token account: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("parse mint: %w", err)
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(payer, false, false),
		solana.NewAccountMeta(mintKey, false, false),
		solana.NewAccountMeta(solana.MustPublicKeyFromBase58(systemProgram), false, false),
		solana.NewAccountMeta(solana.MustPublicKeyFromBase58(pda.TokenProgram), false, false),
	}

	return solana.NewInstruction(
		solana.MustPublicKeyFromBase58(pda.AssociatedTokenProgram),
		accounts,
		[]byte{ataCreateIdempotent},
	), nil
}

// tradeInstruction encodes the domain buy/sell instruction.
func (b *Builder) tradeInstruction(signer solana.PublicKey, order Order, pool, poolTokenAccount, userTokenAccount, creator string) (solana.Instruction, error) {
	var amount uint64
	disc := byte(discSell)
	switch order.Side {
	case events.SideBuy:
		disc = discBuy
		amount = uint64(math.Floor(order.Amount * lamportsPerSol))
	default:
		amount = uint64(math.Floor(order.Amount * rawPerToken))
	}
	if amount == 0 {
		return nil, fmt.Errorf("order amount %g converts to zero native units", order.Amount)
	}

	data := make([]byte, 17)
	data[0] = disc
	binary.LittleEndian.PutUint64(data[1:9], amount)
	binary.LittleEndian.PutUint64(data[9:17], order.MinOut)

	keys := []string{pool, order.Mint, poolTokenAccount, userTokenAccount, creator}
	parsed := make([]solana.PublicKey, len(keys))
	for i, k := range keys {
		pub, err := solana.PublicKeyFromBase58(k)
		if err != nil {
			return nil, fmt.Errorf("parse account %s: %w", k, err)
		}
		parsed[i] = pub
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(signer, true, true),
		solana.NewAccountMeta(parsed[0], true, false),  // pool
		solana.NewAccountMeta(parsed[1], false, false), // mint
		solana.NewAccountMeta(parsed[2], true, false),  // pool token account
		solana.NewAccountMeta(parsed[3], true, false),  // user token account
		solana.NewAccountMeta(parsed[4], true, false),  // creator
		solana.NewAccountMeta(b.feeReceiver, true, false),
		solana.NewAccountMeta(solana.MustPublicKeyFromBase58(pda.TokenProgram), false, false),
		solana.NewAccountMeta(solana.MustPublicKeyFromBase58(systemProgram), false, false),
	}

	return solana.NewInstruction(b.programID, accounts, data), nil
}
