package events

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curvebot/internal/pricing"
)

func addr(fill byte) []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = fill
	}
	return b
}

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func lpString(s string) []byte {
	return append([]byte{byte(len(s))}, s...)
}

// encodePoolCreated builds a PoolCreated payload with the wire layout. The
// optional reserve overrides are appended only when withReserves is set.
func encodePoolCreated(creator, mint []byte, name, symbol, uri string, mode uint8,
	initialBuy, totalSupply uint64, withReserves bool, vSol, vTok uint64) []byte {

	buf := []byte{discPoolCreated}
	buf = append(buf, creator...)
	buf = append(buf, mint...)
	buf = append(buf, lpString(name)...)
	buf = append(buf, lpString(symbol)...)
	buf = append(buf, lpString(uri)...)
	buf = append(buf, mode)
	buf = append(buf, u64le(initialBuy)...)
	buf = append(buf, u64le(totalSupply)...)
	if withReserves {
		buf = append(buf, u64le(vSol)...)
		buf = append(buf, u64le(vTok)...)
	}
	return buf
}

// encodeTrade builds a Trade payload. The amount order follows the side:
// buy is SOL-then-token, sell is token-then-SOL.
func encodeTrade(trader, mint []byte, sideByte uint8, solAmount, tokenAmount uint64,
	phase uint8, wirePrice, tokenReserve, solReserve uint64) []byte {

	buf := []byte{discTrade}
	buf = append(buf, trader...)
	buf = append(buf, mint...)
	buf = append(buf, sideByte)
	if sideByte == 0 {
		buf = append(buf, u64le(solAmount)...)
		buf = append(buf, u64le(tokenAmount)...)
	} else {
		buf = append(buf, u64le(tokenAmount)...)
		buf = append(buf, u64le(solAmount)...)
	}
	buf = append(buf, phase)
	buf = append(buf, u64le(wirePrice)...)
	buf = append(buf, u64le(tokenReserve)...)
	buf = append(buf, u64le(solReserve)...)
	return buf
}

func encodePhaseChange(mint []byte, oldPhase, newPhase uint8, threshold uint64) []byte {
	buf := []byte{discPhaseChange}
	buf = append(buf, mint...)
	buf = append(buf, oldPhase, newPhase)
	buf = append(buf, u64le(threshold)...)
	return buf
}

func TestDecode_PoolCreatedFull(t *testing.T) {
	creator, mint := addr(1), addr(2)
	buf := encodePoolCreated(creator, mint, "Moon Cat", "MCAT", "https://example.com/mcat.json",
		0, 5_000_000_000, 1_000_000_000_000_000, true, 21_000_000_000, 990_000_000_000_000)

	d := NewDecoder("")
	payload, err := d.Decode(buf)
	require.NoError(t, err)

	pc, ok := payload.(*PoolCreated)
	require.True(t, ok)

	assert.Equal(t, base58.Encode(creator), pc.Creator)
	assert.Equal(t, base58.Encode(mint), pc.Mint)
	assert.Equal(t, "Moon Cat", pc.Name)
	assert.Equal(t, "MCAT", pc.Symbol)
	assert.Equal(t, "https://example.com/mcat.json", pc.URI)
	assert.Equal(t, uint8(0), pc.LaunchMode)
	assert.Equal(t, uint64(5_000_000_000), pc.InitialBuy)
	assert.Equal(t, uint64(1_000_000_000_000_000), pc.TotalSupply)
	assert.Equal(t, uint64(21_000_000_000), pc.VirtualSolReserve)
	assert.Equal(t, uint64(990_000_000_000_000), pc.VirtualTokenReserve)
	assert.NotEmpty(t, pc.Pool, "pool derivation must succeed for a valid mint")
	assert.Greater(t, pc.Price, 0.0)
	assert.Equal(t, pc.Price*pricing.ReferenceSupply, pc.MarketCap)
}

func TestDecode_PoolCreatedRoundTrip(t *testing.T) {
	original := encodePoolCreated(addr(9), addr(8), "RT", "RT", "u", 2,
		123, 456, true, 20_000_000_000, 1_000_000_000_000_000)

	payload, err := NewDecoder("").Decode(original)
	require.NoError(t, err)
	pc := payload.(*PoolCreated)

	creator, err := base58.Decode(pc.Creator)
	require.NoError(t, err)
	mint, err := base58.Decode(pc.Mint)
	require.NoError(t, err)

	reencoded := encodePoolCreated(creator, mint, pc.Name, pc.Symbol, pc.URI,
		pc.LaunchMode, pc.InitialBuy, pc.TotalSupply, true,
		pc.VirtualSolReserve, pc.VirtualTokenReserve)

	assert.Equal(t, original, reencoded, "decode then re-encode must be bit-for-bit identical")
}

func TestDecode_PoolCreatedDefaults(t *testing.T) {
	t.Run("mode 0", func(t *testing.T) {
		buf := encodePoolCreated(addr(1), addr(2), "n", "s", "u", 0, 0, 0, false, 0, 0)
		payload, err := NewDecoder("").Decode(buf)
		require.NoError(t, err)

		pc := payload.(*PoolCreated)
		assert.Equal(t, uint64(20_000_000_000), pc.VirtualSolReserve)
		assert.Equal(t, uint64(1_000_000_000_000_000), pc.VirtualTokenReserve)
	})

	t.Run("mode 1", func(t *testing.T) {
		buf := encodePoolCreated(addr(1), addr(2), "n", "s", "u", 1, 0, 0, false, 0, 0)
		payload, err := NewDecoder("").Decode(buf)
		require.NoError(t, err)

		pc := payload.(*PoolCreated)
		assert.Equal(t, uint64(75_000_000_000), pc.VirtualSolReserve)
		assert.Equal(t, uint64(1_000_000_000_000_000), pc.VirtualTokenReserve)
	})

	t.Run("only sol override present", func(t *testing.T) {
		buf := encodePoolCreated(addr(1), addr(2), "n", "s", "u", 0, 0, 0, false, 0, 0)
		buf = append(buf, u64le(33_000_000_000)...)

		payload, err := NewDecoder("").Decode(buf)
		require.NoError(t, err)

		pc := payload.(*PoolCreated)
		assert.Equal(t, uint64(33_000_000_000), pc.VirtualSolReserve)
		assert.Equal(t, uint64(1_000_000_000_000_000), pc.VirtualTokenReserve)
	})
}

func TestDecode_TradeSideDictatesFieldOrder(t *testing.T) {
	trader, mint := addr(3), addr(4)
	const solAmount, tokenAmount = uint64(1_500_000_000), uint64(42_000_000_000)

	t.Run("buy encodes sol then token", func(t *testing.T) {
		buf := encodeTrade(trader, mint, 0, solAmount, tokenAmount, 0, 7, 800_000_000_000_000, 25_000_000_000)
		payload, err := NewDecoder("").Decode(buf)
		require.NoError(t, err)

		tr := payload.(*Trade)
		assert.Equal(t, SideBuy, tr.Side)
		assert.Equal(t, solAmount, tr.SolAmount)
		assert.Equal(t, tokenAmount, tr.TokenAmount)
	})

	t.Run("sell encodes token then sol", func(t *testing.T) {
		buf := encodeTrade(trader, mint, 1, solAmount, tokenAmount, 0, 7, 800_000_000_000_000, 25_000_000_000)
		payload, err := NewDecoder("").Decode(buf)
		require.NoError(t, err)

		tr := payload.(*Trade)
		assert.Equal(t, SideSell, tr.Side)
		assert.Equal(t, solAmount, tr.SolAmount)
		assert.Equal(t, tokenAmount, tr.TokenAmount)
	})
}

func TestDecode_TradeRecomputesPrice(t *testing.T) {
	// On-wire price field is a sentinel; the decoded price must come from
	// the reserves instead.
	const tokenReserve, solReserve = uint64(700_000_000_000_000), uint64(28_000_000_000)
	buf := encodeTrade(addr(3), addr(4), 0, 1, 1, 0, ^uint64(0), tokenReserve, solReserve)

	payload, err := NewDecoder("").Decode(buf)
	require.NoError(t, err)

	tr := payload.(*Trade)
	want := pricing.Price(pricing.PhaseBondingCurve, tokenReserve, solReserve)
	assert.Equal(t, want.Price, tr.Price)
	assert.Equal(t, want.MarketCap, tr.MarketCap)
	assert.Equal(t, tokenReserve, tr.TokenReserve)
	assert.Equal(t, solReserve, tr.SolReserve)
	assert.True(t, tr.Phase.IsBondingCurve())
}

func TestDecode_PhaseChange(t *testing.T) {
	mint := addr(5)
	buf := encodePhaseChange(mint, 0, 1, 85_000_000_000)

	payload, err := NewDecoder("").Decode(buf)
	require.NoError(t, err)

	pcEvent := payload.(*PhaseChange)
	assert.Equal(t, base58.Encode(mint), pcEvent.Mint)
	assert.True(t, pcEvent.OldPhase.IsBondingCurve())
	assert.False(t, pcEvent.NewPhase.IsBondingCurve())
	assert.Equal(t, uint64(85_000_000_000), pcEvent.Threshold)
	assert.NotEmpty(t, pcEvent.Pool)
}

func TestDecode_NoEventCases(t *testing.T) {
	d := NewDecoder("")

	t.Run("empty buffer", func(t *testing.T) {
		_, err := d.Decode(nil)
		assert.ErrorIs(t, err, ErrEmptyPayload)
	})

	t.Run("unknown discriminant", func(t *testing.T) {
		_, err := d.Decode([]byte{9, 1, 2, 3})
		assert.ErrorIs(t, err, ErrUnknownDiscriminant)
	})

	t.Run("truncated mid-parse", func(t *testing.T) {
		buf := encodeTrade(addr(1), addr(2), 0, 1, 2, 0, 3, 4, 5)
		for cut := 1; cut < len(buf); cut += 7 {
			if _, err := d.Decode(buf[:cut]); err == nil {
				t.Fatalf("truncation at %d decoded without error", cut)
			}
		}
	})
}

func TestExtractPayload(t *testing.T) {
	raw := encodePhaseChange(addr(1), 0, 1, 10)
	line := "Program data: " + base64.StdEncoding.EncodeToString(raw)

	got, ok := ExtractPayload(line)
	require.True(t, ok)
	assert.Equal(t, raw, got)

	_, ok = ExtractPayload("Program log: Instruction: Buy")
	assert.False(t, ok, "lines without the marker are a silent skip")

	_, ok = ExtractPayload("Program data: !!!not-base64!!!")
	assert.False(t, ok)
}

func TestDecodeLogs(t *testing.T) {
	d := NewDecoder("")
	trade := encodeTrade(addr(1), addr(2), 0, 10, 20, 0, 0, 500_000_000_000_000, 1)
	logs := []string{
		"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P invoke [1]",
		"Program data: " + base64.StdEncoding.EncodeToString(trade),
		"Program data: " + base64.StdEncoding.EncodeToString([]byte{99}), // dropped
		"Program data: " + base64.StdEncoding.EncodeToString(encodePhaseChange(addr(2), 0, 1, 5)),
		"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P success",
	}

	envs := d.DecodeLogs("sig123", 777, logs)
	require.Len(t, envs, 2)

	assert.Equal(t, KindTrade, envs[0].Kind)
	assert.Equal(t, KindPhaseChange, envs[1].Kind)
	for _, env := range envs {
		assert.Equal(t, "sig123", env.Signature)
		assert.Equal(t, int64(777), env.Slot)
		assert.False(t, env.ObservedAt.IsZero())
	}
}
