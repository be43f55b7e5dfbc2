package types

import (
	"math"
	"time"
)

// InstrumentType is the tagged variant over everything the engine can trade:
// plain equity plus the supported multi-leg options structures.
type InstrumentType string

const (
	InstrumentEquity         InstrumentType = "equity"
	InstrumentBullCallSpread InstrumentType = "bull_call_spread"
	InstrumentBearPutSpread  InstrumentType = "bear_put_spread"
	InstrumentIronCondor     InstrumentType = "iron_condor"
	InstrumentButterfly      InstrumentType = "butterfly"
)

// IsOptions reports whether the instrument is a multi-leg options structure.
func (it InstrumentType) IsOptions() bool {
	return it != InstrumentEquity
}

// Slot returns the strategy slot the instrument occupies. A symbol can hold
// at most one open position per slot.
func (it InstrumentType) Slot() Slot {
	if it.IsOptions() {
		return SlotOptions
	}
	return SlotEquity
}

// Slot is a logical bucket limiting concurrent positions per symbol.
type Slot string

const (
	SlotEquity  Slot = "equity"
	SlotOptions Slot = "options"
)

type Direction int

const (
	DirectionLong Direction = iota
	DirectionShort
)

func (d Direction) String() string {
	if d == DirectionShort {
		return "SHORT"
	}
	return "LONG"
}

// Sign returns +1 for long and -1 for short, for P&L arithmetic.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

type LegAction string

const (
	LegBuy  LegAction = "buy"
	LegSell LegAction = "sell"
)

// OptionLeg is one leg of a multi-leg options structure. Premium is the
// per-share price at entry; Quantity is contracts per structure (2 for the
// body of a butterfly).
type OptionLeg struct {
	Type     OptionType `json:"type"`
	Action   LegAction  `json:"action"`
	Strike   float64    `json:"strike"`
	Premium  float64    `json:"premium"`
	Quantity int        `json:"quantity"`
}

// TradeProposal is the Strategy Selector's output: a candidate trade the
// Risk Manager may accept, shrink, or reject. Quantity zero means the Risk
// Manager sizes the trade.
//
// Price semantics differ by instrument. Equity proposals quote per-share
// prices and per-share stop/take levels. Options proposals quote the whole
// structure: EntryPrice is the net debit (or reserved margin for credit
// structures) per structure, and StopLoss/TakeProfit are mark-to-market P&L
// thresholds per structure (negative stop, positive take).
type TradeProposal struct {
	Symbol     string
	Instrument InstrumentType
	Direction  Direction
	// Close marks a proposal to unwind the open position in TargetSlot
	// instead of opening a new one.
	Close      bool
	TargetSlot Slot
	Quantity   int
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Legs       []OptionLeg
	MaxLoss    float64
	MaxProfit  float64
	Expiry     time.Time
	Rationale  CompositeSignal
}

// UnitCost is the capital debited per share (equity) or per structure
// (options, where the worst-case loss is reserved up front).
func (p *TradeProposal) UnitCost() float64 {
	if p.Instrument.IsOptions() {
		return p.MaxLoss
	}
	return p.EntryPrice
}

// UnitRisk is the capital at risk per share or per structure, the divisor
// for position sizing.
func (p *TradeProposal) UnitRisk() float64 {
	if p.Instrument.IsOptions() {
		return p.MaxLoss
	}
	return math.Abs(p.EntryPrice - p.StopLoss)
}

// AcceptedTrade is a risk-approved instruction for the Portfolio Manager.
// Opens carry the sized quantity and capital at risk. Closes reference the
// open position by (Symbol, Slot) and carry exit pricing: ExitPrice for
// equity, ExitPnL (whole-position mark-to-market) for options structures.
type AcceptedTrade struct {
	Proposal      TradeProposal
	Quantity      int
	CapitalAtRisk float64
	Close         bool
	Slot          Slot
	ExitPrice     float64
	ExitPnL       float64
	Reason        string
	Timestamp     time.Time
}

// PositionKey addresses an open position: one per (symbol, strategy slot).
type PositionKey struct {
	Symbol string
	Slot   Slot
}

// Position is an open holding. Owned exclusively by the Portfolio Manager;
// everyone else sees copies inside a PortfolioSnapshot.
type Position struct {
	Symbol        string
	Instrument    InstrumentType
	Slot          Slot
	Direction     Direction
	Quantity      int
	EntryPrice    float64
	EntryTime     time.Time
	StopLoss      float64
	TakeProfit    float64
	Legs          []OptionLeg
	MaxLoss       float64
	MaxProfit     float64
	Expiry        time.Time
	CostBasis     float64
	CapitalAtRisk float64
}

// PortfolioSnapshot is an immutable copy of portfolio state taken at a
// point in time. Reads never block a running cycle.
type PortfolioSnapshot struct {
	InitialCapital float64
	Cash           float64
	RealizedPnL    float64
	RiskInUse      float64
	Positions      map[PositionKey]Position
	TakenAt        time.Time
}

// Value is the book value used for position sizing: cash plus the cost
// basis of everything held.
func (s *PortfolioSnapshot) Value() float64 {
	v := s.Cash
	for _, p := range s.Positions {
		v += p.CostBasis
	}
	return v
}

func (s *PortfolioSnapshot) HasPosition(symbol string, slot Slot) bool {
	_, ok := s.Positions[PositionKey{Symbol: symbol, Slot: slot}]
	return ok
}

// TradeAction distinguishes the two record kinds in the journal.
type TradeAction string

const (
	TradeOpen  TradeAction = "OPEN"
	TradeClose TradeAction = "CLOSE"
)

// TradeRecord is one append-only journal entry, written once per executed
// open or close and never mutated. IDs are assigned monotonically by the
// Portfolio Manager so replay after a crash is idempotent.
type TradeRecord struct {
	ID         int64
	Timestamp  time.Time
	Symbol     string
	Instrument InstrumentType
	Slot       Slot
	Direction  Direction
	Action     TradeAction
	Quantity   int
	Price      float64
	CostBasis  float64
	PnL        float64
	Reason     string
	Score      float64
	Confidence float64
}
