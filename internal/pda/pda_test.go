package pda

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProgram = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

func TestDerive_Deterministic(t *testing.T) {
	mint := make([]byte, 32)
	mint[0] = 0x42

	addr1, ok1 := Derive(testProgram, []byte("bonding_curve"), mint)
	addr2, ok2 := Derive(testProgram, []byte("bonding_curve"), mint)

	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, addr1, addr2, "same inputs must derive the same address")

	decoded, err := base58.Decode(addr1)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)
}

func TestDerive_SeedSensitivity(t *testing.T) {
	mintA := make([]byte, 32)
	mintB := make([]byte, 32)
	mintB[31] = 1

	addrA, okA := Derive(testProgram, []byte("bonding_curve"), mintA)
	addrB, okB := Derive(testProgram, []byte("bonding_curve"), mintB)

	require.True(t, okA)
	require.True(t, okB)
	assert.NotEqual(t, addrA, addrB, "different seeds must derive different addresses")
}

func TestDerive_OffCurveResult(t *testing.T) {
	addr, ok := Derive(testProgram, []byte("bonding_curve"), make([]byte, 32))
	require.True(t, ok)

	decoded, err := base58.Decode(addr)
	require.NoError(t, err)
	assert.False(t, isOnCurve(decoded), "derived address must be off the ed25519 curve")
}

func TestDerive_InvalidInputs(t *testing.T) {
	t.Run("bad program id", func(t *testing.T) {
		_, ok := Derive("not-base58-0OIl", []byte("seed"))
		assert.False(t, ok)
	})

	t.Run("short program id", func(t *testing.T) {
		_, ok := Derive(base58.Encode([]byte{1, 2, 3}), []byte("seed"))
		assert.False(t, ok)
	})

	t.Run("oversized seed", func(t *testing.T) {
		_, ok := Derive(testProgram, make([]byte, 33))
		assert.False(t, ok)
	})
}

func TestAssociatedTokenAddress(t *testing.T) {
	owner := base58.Encode(append([]byte{9}, make([]byte, 31)...))
	mint := base58.Encode(append([]byte{7}, make([]byte, 31)...))

	addr, ok := AssociatedTokenAddress(owner, mint)
	require.True(t, ok)

	again, ok2 := AssociatedTokenAddress(owner, mint)
	require.True(t, ok2)
	assert.Equal(t, addr, again)

	other, ok3 := AssociatedTokenAddress(mint, owner)
	require.True(t, ok3)
	assert.NotEqual(t, addr, other, "owner and mint are positional seeds")

	_, ok = AssociatedTokenAddress("bogus", mint)
	assert.False(t, ok)
}
