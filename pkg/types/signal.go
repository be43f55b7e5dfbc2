package types

import "time"

// SignalSource identifies the provider that produced a signal.
type SignalSource string

const (
	SourceTechnical   SignalSource = "technical"
	SourceOptionsFlow SignalSource = "options_flow"
	SourceAnalyst     SignalSource = "analyst"
)

// Signal is one provider's view of a symbol for a single evaluation cycle.
// Value is a normalized score in [-1, +1]; Confidence is in [0, 1].
// Signals are immutable once produced and consumed within one cycle.
type Signal struct {
	Source     SignalSource
	Symbol     string
	Value      float64
	Confidence float64
	Timestamp  time.Time
}

// Bias is the directional recommendation derived from a composite score.
type Bias int

const (
	BiasNeutral Bias = iota
	BiasLong
	BiasShort
)

func (b Bias) String() string {
	switch b {
	case BiasLong:
		return "LONG"
	case BiasShort:
		return "SHORT"
	case BiasNeutral:
		return "NEUTRAL"
	default:
		return "UNKNOWN"
	}
}

// CompositeSignal is the aggregated view of all sources for a symbol.
// It lives for one cycle; only the audit log keeps it longer.
type CompositeSignal struct {
	Symbol     string
	Score      float64
	Bias       Bias
	Confidence float64
	Sources    int
	Breakdown  map[SignalSource]float64
	Timestamp  time.Time
}
