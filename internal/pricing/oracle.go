// Package pricing computes per-token price and market capitalization from
// the reserve figures carried in program events.
//
// Two fixed constant-product invariants are used: one for the bonding-curve
// phase (virtual reserves) and one for the post-migration AMM phase (pooled
// reserves). Reserve inputs are raw uint64 amounts; they cross into float64
// only inside the division below, so values above 2^53 lose sub-unit
// precision at that boundary and nowhere earlier.
package pricing

// Phase identifies which pricing regime a pool is in. The wire encoding is a
// single byte: 0 while the token trades on the bonding curve, any nonzero
// value once liquidity has migrated to the AMM.
type Phase uint8

// PhaseBondingCurve is the pre-migration phase.
const PhaseBondingCurve Phase = 0

// IsBondingCurve reports whether the phase byte denotes the bonding curve.
func (p Phase) IsBondingCurve() bool { return p == PhaseBondingCurve }

func (p Phase) String() string {
	if p.IsBondingCurve() {
		return "bonding_curve"
	}
	return "amm"
}

const (
	// Constant-product invariant for the bonding-curve phase:
	// virtual SOL lamports x normalized virtual tokens.
	bondingCurveK = 20_000_000_000.0 * 1_000_000_000.0

	// Constant-product invariant for the AMM phase.
	ammK = 36_000_000_000.0 * 450_000_000.0

	// tokenScale converts raw token units to whole tokens (6 decimals).
	tokenScale = 1_000_000.0

	// solScale converts lamports to whole SOL (9 decimals).
	solScale = 1_000_000_000.0

	// ReferenceSupply is the fixed whole-token supply used for every
	// capitalization figure, regardless of the actual circulating supply
	// reported elsewhere in the same payload.
	ReferenceSupply = 1_000_000_000.0
)

// Result is a pure pricing outcome. It is recomputed on every call and never
// cached; the on-wire price field in trade events is superseded by it.
type Result struct {
	// Price is SOL per whole token.
	Price float64
	// MarketCap is Price multiplied by ReferenceSupply.
	MarketCap float64
	// ReferenceSupply echoes the supply constant the MarketCap used.
	ReferenceSupply float64
	Phase           Phase
}

// Price derives the pricing result for the given phase and reserve pair.
// A zero reserve on the dividing side yields a zero price rather than an
// error; malformed events must not break the decode path.
func Price(phase Phase, tokenReserveRaw, solReserveRaw uint64) Result {
	res := Result{ReferenceSupply: ReferenceSupply, Phase: phase}

	if phase.IsBondingCurve() {
		tokens := float64(tokenReserveRaw) / tokenScale
		if tokens <= 0 {
			return res
		}
		impliedSol := bondingCurveK / tokens
		res.Price = impliedSol / tokens / solScale
	} else {
		sol := float64(solReserveRaw)
		if sol <= 0 {
			return res
		}
		impliedTokens := ammK / sol
		res.Price = sol / impliedTokens / solScale
	}

	res.MarketCap = res.Price * ReferenceSupply
	return res
}
