// Package pda derives Solana program-derived addresses.
package pda

import (
	"crypto/sha256"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program addresses used for token account derivation.
const (
	TokenProgram           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgram = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
)

const maxSeedLen = 32

// Derive finds the program-derived address for programID (base58) and the
// given seeds. It returns ok=false on any failure (invalid program id,
// oversized seed, exhausted bump search) so callers on the decode path can
// treat an unparseable mint as "unknown" rather than an error.
func Derive(programID string, seeds ...[]byte) (string, bool) {
	program, err := base58.Decode(programID)
	if err != nil || len(program) != 32 {
		return "", false
	}
	return DeriveBytes(program, seeds...)
}

// DeriveBytes is Derive for callers already holding the raw 32-byte program id.
//
// Derivation: sha256(seeds || bump || programID || "ProgramDerivedAddress"),
// scanning bump from 255 down; the first digest that is not a valid ed25519
// curve point is the address.
func DeriveBytes(program []byte, seeds ...[]byte) (string, bool) {
	if len(program) != 32 {
		return "", false
	}
	for _, seed := range seeds {
		if len(seed) > maxSeedLen {
			return "", false
		}
	}

	for bump := byte(255); bump > 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{bump})
		h.Write(program)
		h.Write([]byte("ProgramDerivedAddress"))
		digest := h.Sum(nil)

		if !isOnCurve(digest) {
			return base58.Encode(digest), true
		}
	}

	return "", false
}

// AssociatedTokenAddress derives the canonical token account for an owner and
// mint, both base58.
func AssociatedTokenAddress(owner, mint string) (string, bool) {
	ownerBytes, err := base58.Decode(owner)
	if err != nil || len(ownerBytes) != 32 {
		return "", false
	}
	mintBytes, err := base58.Decode(mint)
	if err != nil || len(mintBytes) != 32 {
		return "", false
	}
	tokenProgram, err := base58.Decode(TokenProgram)
	if err != nil {
		return "", false
	}
	return Derive(AssociatedTokenProgram, ownerBytes, tokenProgram, mintBytes)
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
