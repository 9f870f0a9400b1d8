package events

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"curvebot/internal/observability"
	"curvebot/internal/pda"
	"curvebot/internal/pricing"
	"curvebot/internal/wire"
)

// DefaultProgramID is the launchpad program this decoder targets by default.
const DefaultProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// payloadMarker prefixes log lines that embed a base64 event payload.
const payloadMarker = "Program data: "

// Event discriminants, first byte of every payload.
const (
	discPoolCreated = 0
	discTrade       = 1
	discPhaseChange = 4
)

// Virtual-reserve defaults applied when the optional trailing fields are
// absent from a PoolCreated payload. Absence is determined by remaining
// buffer length alone; there is no presence flag on the wire.
const (
	defaultVirtualSolMode1   = 75_000_000_000
	defaultVirtualSol        = 20_000_000_000
	defaultVirtualTokens     = 1_000_000_000_000_000
	poolSeed                 = "bonding_curve"
	optionalReserveFieldSize = 8
)

// ErrUnknownDiscriminant reports a payload whose leading byte matches no
// known event variant.
var ErrUnknownDiscriminant = errors.New("events: unknown discriminant")

// ErrEmptyPayload reports a zero-length payload.
var ErrEmptyPayload = errors.New("events: empty payload")

// Decoder parses raw payload buffers into typed events. Decoding is
// stateless; a single Decoder is safe for concurrent use across independent
// buffers.
type Decoder struct {
	programID string
}

// NewDecoder creates a Decoder for the given program. An empty programID
// falls back to DefaultProgramID.
func NewDecoder(programID string) *Decoder {
	if programID == "" {
		programID = DefaultProgramID
	}
	return &Decoder{programID: programID}
}

// ExtractPayload pulls the base64 event payload out of a raw log line.
// Lines without the marker, or with a payload that is not valid base64, are
// a normal silent skip.
func ExtractPayload(line string) ([]byte, bool) {
	idx := strings.Index(line, payloadMarker)
	if idx < 0 {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(line[idx+len(payloadMarker):])
	if err != nil {
		return nil, false
	}
	return data, true
}

// Decode parses a single payload buffer. A non-nil error means the buffer
// yields no event; callers drop it and continue.
func (d *Decoder) Decode(buf []byte) (Payload, error) {
	if len(buf) == 0 {
		return nil, ErrEmptyPayload
	}

	r := wire.NewReader(buf)
	disc, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch disc {
	case discPoolCreated:
		return d.decodePoolCreated(r)
	case discTrade:
		return d.decodeTrade(r)
	case discPhaseChange:
		return d.decodePhaseChange(r)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownDiscriminant, disc)
	}
}

// DecodeLogs extracts and decodes every payload line of one transaction,
// in log order. Lines that fail to decode are counted and dropped; the rest
// of the transaction is still processed.
func (d *Decoder) DecodeLogs(signature string, slot int64, logs []string) []Envelope {
	var out []Envelope
	now := time.Now()

	for _, line := range logs {
		buf, ok := ExtractPayload(line)
		if !ok {
			continue
		}

		payload, err := d.Decode(buf)
		if err != nil {
			observability.RecordDecodeDrop(dropReason(err))
			continue
		}

		out = append(out, Envelope{
			Kind:       payload.Kind(),
			Signature:  signature,
			Slot:       slot,
			Payload:    payload,
			ObservedAt: now,
		})
		observability.RecordEventDecoded(payload.Kind().String())
	}

	return out
}

func (d *Decoder) decodePoolCreated(r *wire.Reader) (Payload, error) {
	creator, err := d.readAddress(r)
	if err != nil {
		return nil, err
	}
	mint, err := d.readAddress(r)
	if err != nil {
		return nil, err
	}

	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	symbol, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	uri, err := r.ReadString()
	if err != nil {
		return nil, err
	}

	mode, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	initialBuy, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	totalSupply, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}

	virtualSol := uint64(defaultVirtualSol)
	if mode == 1 {
		virtualSol = defaultVirtualSolMode1
	}
	virtualTokens := uint64(defaultVirtualTokens)

	if r.Remaining() >= optionalReserveFieldSize {
		if virtualSol, err = r.ReadUint64(); err != nil {
			return nil, err
		}
	}
	if r.Remaining() >= optionalReserveFieldSize {
		if virtualTokens, err = r.ReadUint64(); err != nil {
			return nil, err
		}
	}

	res := pricing.Price(pricing.PhaseBondingCurve, virtualTokens, virtualSol)

	return &PoolCreated{
		Mint:                mint,
		Creator:             creator,
		Name:                name,
		Symbol:              symbol,
		URI:                 uri,
		LaunchMode:          mode,
		InitialBuy:          initialBuy,
		TotalSupply:         totalSupply,
		VirtualSolReserve:   virtualSol,
		VirtualTokenReserve: virtualTokens,
		Pool:                d.derivePool(mint),
		Price:               res.Price,
		MarketCap:           res.MarketCap,
	}, nil
}

func (d *Decoder) decodeTrade(r *wire.Reader) (Payload, error) {
	trader, err := d.readAddress(r)
	if err != nil {
		return nil, err
	}
	mint, err := d.readAddress(r)
	if err != nil {
		return nil, err
	}

	sideByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	side := SideSell
	if sideByte == 0 {
		side = SideBuy
	}

	// Wire contract: buy encodes SOL amount then token amount, sell the
	// reverse. The order is part of the protocol, not normalized here.
	first, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	second, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	solAmount, tokenAmount := first, second
	if side == SideSell {
		solAmount, tokenAmount = second, first
	}

	phaseByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	// On-wire price: consumed to keep the cursor aligned, superseded by the
	// freshly computed result below.
	if _, err = r.ReadUint64(); err != nil {
		return nil, err
	}

	tokenReserve, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	solReserve, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}

	phase := pricing.Phase(phaseByte)
	res := pricing.Price(phase, tokenReserve, solReserve)

	return &Trade{
		Trader:       trader,
		Mint:         mint,
		Pool:         d.derivePool(mint),
		Side:         side,
		SolAmount:    solAmount,
		TokenAmount:  tokenAmount,
		Phase:        phase,
		TokenReserve: tokenReserve,
		SolReserve:   solReserve,
		Price:        res.Price,
		MarketCap:    res.MarketCap,
	}, nil
}

func (d *Decoder) decodePhaseChange(r *wire.Reader) (Payload, error) {
	mint, err := d.readAddress(r)
	if err != nil {
		return nil, err
	}
	oldPhase, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	newPhase, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	threshold, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}

	return &PhaseChange{
		Mint:      mint,
		Pool:      d.derivePool(mint),
		OldPhase:  pricing.Phase(oldPhase),
		NewPhase:  pricing.Phase(newPhase),
		Threshold: threshold,
	}, nil
}

func (d *Decoder) readAddress(r *wire.Reader) (string, error) {
	b, err := r.ReadBytes(32)
	if err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}

// derivePool resolves the bonding-curve address for a mint. Derivation
// failure leaves the field empty; a malformed mint must not drop the event.
func (d *Decoder) derivePool(mint string) string {
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return ""
	}
	pool, ok := pda.Derive(d.programID, []byte(poolSeed), mintBytes)
	if !ok {
		return ""
	}
	return pool
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyPayload):
		return "empty"
	case errors.Is(err, ErrUnknownDiscriminant):
		return "unknown_discriminant"
	case errors.Is(err, wire.ErrShortBuffer):
		return "short_buffer"
	default:
		return "malformed"
	}
}
