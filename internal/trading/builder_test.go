package trading

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curvebot/internal/events"
	"curvebot/internal/pda"
	solrpc "curvebot/internal/solana"
	"curvebot/internal/solana/stub"
)

const (
	testMint        = "So11111111111111111111111111111111111111112"
	testFeeReceiver = "SysvarRent111111111111111111111111111111111"
	computeBudgetID = "ComputeBudget111111111111111111111111111111"
)

// seedPool stores a pool account whose creator field is filled with the
// given byte, and returns the pool address and creator address.
func seedPool(t *testing.T, rpc *stub.RPCClient, creatorFill byte) (pool, creator string) {
	t.Helper()

	mintBytes, err := base58.Decode(testMint)
	require.NoError(t, err)

	pool, ok := pda.Derive(events.DefaultProgramID, []byte("bonding_curve"), mintBytes)
	require.True(t, ok)

	data := make([]byte, 128)
	for i := creatorOffset; i < creatorOffset+creatorLen; i++ {
		data[i] = creatorFill
	}
	creator = base58.Encode(data[creatorOffset : creatorOffset+creatorLen])

	rpc.Accounts[pool] = &solrpc.AccountInfo{
		Lamports: 1_000_000,
		Owner:    events.DefaultProgramID,
		Data:     base64.StdEncoding.EncodeToString(data),
	}
	return pool, creator
}

func newTestBuilder(t *testing.T, rpc *stub.RPCClient) *Builder {
	t.Helper()
	b, err := NewBuilder(rpc, "", testFeeReceiver)
	require.NoError(t, err)
	return b
}

func TestBuilder_Buy(t *testing.T) {
	rpc := stub.NewRPCClient()
	pool, creator := seedPool(t, rpc, 7)
	b := newTestBuilder(t, rpc)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	signer := key.PublicKey()

	instructions, err := b.Build(context.Background(), signer, Order{
		Mint:   testMint,
		Side:   events.SideBuy,
		Amount: 1.5,
	})
	require.NoError(t, err)
	require.Len(t, instructions, 4)

	budget := solana.MustPublicKeyFromBase58(computeBudgetID)
	assert.True(t, instructions[0].ProgramID().Equals(budget))
	assert.True(t, instructions[1].ProgramID().Equals(budget))
	assert.True(t, instructions[2].ProgramID().Equals(solana.MustPublicKeyFromBase58(pda.AssociatedTokenProgram)))

	trade := instructions[3]
	assert.True(t, trade.ProgramID().Equals(solana.MustPublicKeyFromBase58(events.DefaultProgramID)))

	data, err := trade.Data()
	require.NoError(t, err)
	require.Len(t, data, 17)
	assert.Equal(t, byte(discBuy), data[0])
	assert.Equal(t, uint64(1_500_000_000), binary.LittleEndian.Uint64(data[1:9]), "1.5 SOL in lamports")
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(data[9:17]), "min-out defaults to zero")

	accounts := trade.Accounts()
	require.Len(t, accounts, 9)
	assert.True(t, accounts[0].PublicKey.Equals(signer))
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)
	assert.Equal(t, pool, accounts[1].PublicKey.String())
	assert.Equal(t, testMint, accounts[2].PublicKey.String())
	assert.Equal(t, creator, accounts[5].PublicKey.String())
	assert.Equal(t, testFeeReceiver, accounts[6].PublicKey.String())
	assert.Equal(t, pda.TokenProgram, accounts[7].PublicKey.String())
	assert.Equal(t, systemProgram, accounts[8].PublicKey.String())

	poolATA, ok := pda.AssociatedTokenAddress(pool, testMint)
	require.True(t, ok)
	userATA, ok := pda.AssociatedTokenAddress(signer.String(), testMint)
	require.True(t, ok)
	assert.Equal(t, poolATA, accounts[3].PublicKey.String())
	assert.Equal(t, userATA, accounts[4].PublicKey.String())
}

func TestBuilder_SellSkipsAccountCreation(t *testing.T) {
	rpc := stub.NewRPCClient()
	seedPool(t, rpc, 9)
	b := newTestBuilder(t, rpc)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	instructions, err := b.Build(context.Background(), key.PublicKey(), Order{
		Mint:   testMint,
		Side:   events.SideSell,
		Amount: 2.5,
		MinOut: 42,
	})
	require.NoError(t, err)
	require.Len(t, instructions, 3, "sell path has no token-account creation")

	data, err := instructions[2].Data()
	require.NoError(t, err)
	assert.Equal(t, byte(discSell), data[0])
	assert.Equal(t, uint64(2_500_000), binary.LittleEndian.Uint64(data[1:9]), "2.5 tokens in raw units")
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(data[9:17]))
}

func TestBuilder_AmountFloored(t *testing.T) {
	rpc := stub.NewRPCClient()
	seedPool(t, rpc, 1)
	b := newTestBuilder(t, rpc)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	instructions, err := b.Build(context.Background(), key.PublicKey(), Order{
		Mint:   testMint,
		Side:   events.SideBuy,
		Amount: 0.0000000019, // 1.9 lamports
	})
	require.NoError(t, err)

	data, err := instructions[3].Data()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(data[1:9]), "conversion floors")
}

func TestBuilder_PoolNotFound(t *testing.T) {
	rpc := stub.NewRPCClient()
	b := newTestBuilder(t, rpc)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	_, err = b.Build(context.Background(), key.PublicKey(), Order{
		Mint:   testMint,
		Side:   events.SideBuy,
		Amount: 1,
	})
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestBuilder_PoolDataTooShort(t *testing.T) {
	rpc := stub.NewRPCClient()
	mintBytes, err := base58.Decode(testMint)
	require.NoError(t, err)
	pool, ok := pda.Derive(events.DefaultProgramID, []byte("bonding_curve"), mintBytes)
	require.True(t, ok)
	rpc.Accounts[pool] = &solrpc.AccountInfo{
		Data: base64.StdEncoding.EncodeToString(make([]byte, 40)),
	}
	b := newTestBuilder(t, rpc)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	_, err = b.Build(context.Background(), key.PublicKey(), Order{
		Mint: testMint, Side: events.SideBuy, Amount: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestBuilder_ZeroAmount(t *testing.T) {
	rpc := stub.NewRPCClient()
	seedPool(t, rpc, 1)
	b := newTestBuilder(t, rpc)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	_, err = b.Build(context.Background(), key.PublicKey(), Order{
		Mint: testMint, Side: events.SideSell, Amount: 0.0000001,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero native units")
}

func TestBuilder_InvalidMint(t *testing.T) {
	b := newTestBuilder(t, stub.NewRPCClient())

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	_, err = b.Build(context.Background(), key.PublicKey(), Order{
		Mint: "not-base58!", Side: events.SideBuy, Amount: 1,
	})
	assert.Error(t, err)
}

func TestNewBuilder_InvalidFeeReceiver(t *testing.T) {
	_, err := NewBuilder(stub.NewRPCClient(), "", "garbage")
	assert.Error(t, err)
}
