// Package events decodes the launchpad program's binary log payloads into
// typed events.
package events

import (
	"time"

	"curvebot/internal/pricing"
)

// Kind identifies which event variant an envelope carries.
type Kind uint8

// The closed set of event kinds.
const (
	KindUnrecognized Kind = iota
	KindPoolCreated
	KindTrade
	KindPhaseChange
)

func (k Kind) String() string {
	switch k {
	case KindPoolCreated:
		return "pool_created"
	case KindTrade:
		return "trade"
	case KindPhaseChange:
		return "phase_change"
	default:
		return "unrecognized"
	}
}

// Side is a trade direction.
type Side uint8

// Wire side values. Buy is zero; any nonzero byte decodes as sell.
const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// Payload is the sum type over the decoded event variants.
type Payload interface {
	Kind() Kind
}

// Envelope wraps a decoded payload with its transaction context. Envelopes
// are immutable once emitted; subscribers own their copy.
type Envelope struct {
	Kind       Kind
	Signature  string
	Slot       int64
	Payload    Payload
	ObservedAt time.Time
}

// PoolCreated is emitted when a new token and its bonding-curve pool are
// initialized.
type PoolCreated struct {
	Mint    string
	Creator string
	Name    string
	Symbol  string
	URI     string

	// LaunchMode selects the virtual-reserve defaults when the trailing
	// override fields are absent from the payload.
	LaunchMode uint8

	// InitialBuy and TotalSupply are raw token units.
	InitialBuy  uint64
	TotalSupply uint64

	// VirtualSolReserve is lamports; VirtualTokenReserve raw token units.
	VirtualSolReserve   uint64
	VirtualTokenReserve uint64

	// Pool is the derived bonding-curve address; empty if derivation failed.
	Pool string

	Price     float64
	MarketCap float64
}

// Kind implements Payload.
func (*PoolCreated) Kind() Kind { return KindPoolCreated }

// Trade is emitted for every buy or sell against a pool.
type Trade struct {
	Trader string
	Mint   string
	Pool   string
	Side   Side

	// SolAmount is lamports, TokenAmount raw token units. Their wire order
	// depends on Side; both are mapped to these named fields.
	SolAmount   uint64
	TokenAmount uint64

	Phase pricing.Phase

	// TokenReserve and SolReserve are the pool reserves after the trade.
	TokenReserve uint64
	SolReserve   uint64

	// Price and MarketCap are recomputed from the reserves; the on-wire
	// price field is consumed but not trusted.
	Price     float64
	MarketCap float64
}

// Kind implements Payload.
func (*Trade) Kind() Kind { return KindTrade }

// PhaseChange is emitted when a pool crosses between the bonding-curve and
// AMM phases.
type PhaseChange struct {
	Mint string
	Pool string

	OldPhase pricing.Phase
	NewPhase pricing.Phase

	// Threshold is the raw-unit amount that triggered the transition.
	Threshold uint64
}

// Kind implements Payload.
func (*PhaseChange) Kind() Kind { return KindPhaseChange }
