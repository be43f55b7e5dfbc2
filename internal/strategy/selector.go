package strategy

import (
	"time"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// SelectorConfig holds the thresholds driving instrument selection.
type SelectorConfig struct {
	EntryThreshold float64 // minimum |score| to open
	ExitThreshold  float64 // |score| below which open positions are unwound
	HighConfidence float64 // confidence at which trending markets trade shares
	StopLossPct    float64 // equity stop distance from entry
	TakeProfitPct  float64 // equity take distance from entry
	OptionStopFrac float64 // fraction of max loss triggering an options stop
	OptionTakeFrac float64 // fraction of max profit triggering an options take
}

// MarketContext carries the per-symbol market data a selection needs.
type MarketContext struct {
	Quote   types.Quote
	History []types.OHLCV
	Chain   *types.OptionChain
}

// Selector maps an aggregated signal to at most one trade proposal per
// cycle. The mapping is a pure decision table over (bias, confidence,
// regime): the same signal, market data and portfolio state always produce
// the same proposal.
type Selector struct {
	config   SelectorConfig
	detector *RegimeDetector
	builder  *StructureBuilder
}

func NewSelector(config SelectorConfig, detector *RegimeDetector, builder *StructureBuilder) *Selector {
	if detector == nil {
		detector = NewRegimeDetector(nil)
	}
	return &Selector{config: config, detector: detector, builder: builder}
}

// Select produces a proposal for one symbol, or nil when nothing should
// change. Weak signals over an open position produce a close proposal; weak
// signals otherwise produce nothing. Each slot holds at most one position
// per symbol, so a chosen instrument whose slot is occupied yields nil.
func (s *Selector) Select(sig types.CompositeSignal, ctx MarketContext, snap *types.PortfolioSnapshot, now time.Time) *types.TradeProposal {
	strength := abs(sig.Score)

	if strength < s.config.EntryThreshold {
		if strength < s.config.ExitThreshold {
			return s.closeProposal(sig, snap)
		}
		return nil
	}
	if sig.Bias == types.BiasNeutral {
		return nil
	}

	direction := types.DirectionLong
	if sig.Bias == types.BiasShort {
		direction = types.DirectionShort
	}

	regime := s.detector.DetectRegime(ctx.History)

	switch regime {
	case RegimeVolatile:
		return s.optionsProposal(sig, s.builder.BuildButterfly(ctx.Chain, now), direction, snap)
	case RegimeSideways:
		return s.optionsProposal(sig, s.builder.BuildIronCondor(ctx.Chain, now), direction, snap)
	default: // trending
		if sig.Confidence >= s.config.HighConfidence {
			return s.equityProposal(sig, ctx.Quote, direction, snap)
		}
		return s.optionsProposal(sig, s.builder.BuildVerticalSpread(ctx.Chain, direction, now), direction, snap)
	}
}

// closeProposal unwinds one open position on signal decay, equity slot
// first. The remaining slot, if any, is picked up next cycle.
func (s *Selector) closeProposal(sig types.CompositeSignal, snap *types.PortfolioSnapshot) *types.TradeProposal {
	for _, slot := range []types.Slot{types.SlotEquity, types.SlotOptions} {
		if snap.HasPosition(sig.Symbol, slot) {
			return &types.TradeProposal{
				Symbol:     sig.Symbol,
				Close:      true,
				TargetSlot: slot,
				Rationale:  sig,
			}
		}
	}
	return nil
}

func (s *Selector) equityProposal(sig types.CompositeSignal, quote types.Quote, direction types.Direction, snap *types.PortfolioSnapshot) *types.TradeProposal {
	if snap.HasPosition(sig.Symbol, types.SlotEquity) {
		return nil
	}
	entry := quote.Price
	if entry <= 0 {
		return nil
	}

	stop := entry * (1 - s.config.StopLossPct)
	take := entry * (1 + s.config.TakeProfitPct)
	if direction == types.DirectionShort {
		stop = entry * (1 + s.config.StopLossPct)
		take = entry * (1 - s.config.TakeProfitPct)
	}

	return &types.TradeProposal{
		Symbol:     sig.Symbol,
		Instrument: types.InstrumentEquity,
		Direction:  direction,
		TargetSlot: types.SlotEquity,
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: take,
		Rationale:  sig,
	}
}

func (s *Selector) optionsProposal(sig types.CompositeSignal, structure *Structure, direction types.Direction, snap *types.PortfolioSnapshot) *types.TradeProposal {
	if structure == nil {
		return nil
	}
	if snap.HasPosition(sig.Symbol, types.SlotOptions) {
		return nil
	}

	return &types.TradeProposal{
		Symbol:     sig.Symbol,
		Instrument: structure.Kind,
		Direction:  direction,
		TargetSlot: types.SlotOptions,
		EntryPrice: structure.NetDebit,
		StopLoss:   -s.config.OptionStopFrac * structure.MaxLoss,
		TakeProfit: s.config.OptionTakeFrac * structure.MaxProfit,
		Legs:       structure.Legs,
		MaxLoss:    structure.MaxLoss,
		MaxProfit:  structure.MaxProfit,
		Expiry:     structure.Expiry,
		Rationale:  sig,
	}
}
