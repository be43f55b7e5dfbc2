package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/BlockByBlockAI/stocktrading/internal/errors"
	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// RejectionReason is the specific risk check a proposal failed.
type RejectionReason string

const (
	RejectInsufficientCash RejectionReason = "insufficient_cash"
	RejectRiskCeiling      RejectionReason = "risk_ceiling_exceeded"
	RejectConcentration    RejectionReason = "concentration_exceeded"
	RejectZeroQuantity     RejectionReason = "zero_quantity"
	RejectInvalidLevels    RejectionReason = "invalid_exit_levels"
)

// Rejection is a declined proposal. It is normal control flow, not a fault:
// callers log it and move on.
type Rejection struct {
	Reason RejectionReason
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("risk rejection (%s): %s", r.Reason, r.Detail)
}

// Config holds the portfolio risk budgets.
type Config struct {
	RiskPerTrade      float64 // fraction of portfolio value risked per trade
	MaxPortfolioRisk  float64 // ceiling on total capital at risk, fraction of value
	MaxSymbolExposure float64 // cost-basis cap per symbol, fraction of value
	MaxSectorExposure float64 // cost-basis cap per sector, fraction of value
	MaxLossPct        float64 // unrealized-loss backstop, fraction of cost basis
	LotSize           int     // quantity rounds down to a multiple of this
	Sectors           map[string]string
}

// Manager sizes and vets trade proposals against the portfolio risk budget,
// and runs the exit evaluation over open positions. All decisions are pure
// functions of the snapshot and inputs: the same snapshot and proposal
// always produce the same answer.
type Manager struct {
	config Config
}

func NewManager(config Config) *Manager {
	return &Manager{config: config}
}

// MarketView carries the current marks the exit evaluation prices positions
// against: spot per symbol for equity, mark-to-market P&L per structure for
// options positions.
type MarketView struct {
	Prices      map[string]float64
	OptionMarks map[types.PositionKey]float64
}

// Evaluate sizes an opening proposal and checks it against every risk
// budget. Sizing rounds down; any budget the sized trade would breach
// rejects it with that budget's reason.
func (m *Manager) Evaluate(p *types.TradeProposal, snap *types.PortfolioSnapshot, now time.Time) (*types.AcceptedTrade, *Rejection) {
	if rej := m.checkLevels(p); rej != nil {
		return nil, rej
	}

	unitRisk := p.UnitRisk()
	if unitRisk <= 0 {
		return nil, &Rejection{
			Reason: RejectZeroQuantity,
			Detail: fmt.Sprintf("%s: no risk distance between entry and stop", p.Symbol),
		}
	}

	value := snap.Value()
	riskCapital := value * m.config.RiskPerTrade
	quantity := int(riskCapital / unitRisk)
	if lot := m.config.LotSize; lot > 1 {
		quantity -= quantity % lot
	}
	if quantity <= 0 {
		return nil, &Rejection{
			Reason: RejectZeroQuantity,
			Detail: fmt.Sprintf("%s: risk capital %.2f below unit risk %.2f", p.Symbol, riskCapital, unitRisk),
		}
	}

	capitalAtRisk := float64(quantity) * unitRisk
	cost := float64(quantity) * p.UnitCost()

	if cost > snap.Cash {
		return nil, &Rejection{
			Reason: RejectInsufficientCash,
			Detail: fmt.Sprintf("%s: cost %.2f exceeds cash %.2f", p.Symbol, cost, snap.Cash),
		}
	}

	if snap.RiskInUse+capitalAtRisk > m.config.MaxPortfolioRisk*value {
		return nil, &Rejection{
			Reason: RejectRiskCeiling,
			Detail: fmt.Sprintf("%s: risk in use %.2f + %.2f exceeds ceiling %.2f",
				p.Symbol, snap.RiskInUse, capitalAtRisk, m.config.MaxPortfolioRisk*value),
		}
	}

	if rej := m.checkConcentration(p.Symbol, cost, value, snap); rej != nil {
		return nil, rej
	}

	return &types.AcceptedTrade{
		Proposal:      *p,
		Quantity:      quantity,
		CapitalAtRisk: capitalAtRisk,
		Slot:          p.Instrument.Slot(),
		Reason:        "signal_entry",
		Timestamp:     now,
	}, nil
}

// checkLevels enforces exit-level ordering before sizing. An equity long
// needs stop < entry < take, a short inverts that. Options levels are
// mark-to-market P&L: the stop sits below zero, the take above it.
func (m *Manager) checkLevels(p *types.TradeProposal) *Rejection {
	if p.Instrument.IsOptions() {
		if p.StopLoss >= 0 || p.TakeProfit <= 0 {
			return &Rejection{
				Reason: RejectInvalidLevels,
				Detail: fmt.Sprintf("%s: options stop %.2f and take %.2f must straddle zero",
					p.Symbol, p.StopLoss, p.TakeProfit),
			}
		}
		return nil
	}

	ordered := p.StopLoss < p.EntryPrice && p.EntryPrice < p.TakeProfit
	if p.Direction == types.DirectionShort {
		ordered = p.TakeProfit < p.EntryPrice && p.EntryPrice < p.StopLoss
	}
	if !ordered {
		return &Rejection{
			Reason: RejectInvalidLevels,
			Detail: fmt.Sprintf("%s: %s levels out of order (entry %.2f, stop %.2f, take %.2f)",
				p.Symbol, p.Direction, p.EntryPrice, p.StopLoss, p.TakeProfit),
		}
	}
	return nil
}

func (m *Manager) checkConcentration(symbol string, cost, value float64, snap *types.PortfolioSnapshot) *Rejection {
	symbolExposure := cost
	sectorExposure := cost
	sector := m.config.Sectors[symbol]

	for _, pos := range snap.Positions {
		if pos.Symbol == symbol {
			symbolExposure += pos.CostBasis
		}
		if sector != "" && m.config.Sectors[pos.Symbol] == sector {
			sectorExposure += pos.CostBasis
		}
	}

	if symbolExposure > m.config.MaxSymbolExposure*value {
		return &Rejection{
			Reason: RejectConcentration,
			Detail: fmt.Sprintf("%s: symbol exposure %.2f exceeds cap %.2f",
				symbol, symbolExposure, m.config.MaxSymbolExposure*value),
		}
	}
	if sector != "" && sectorExposure > m.config.MaxSectorExposure*value {
		return &Rejection{
			Reason: RejectConcentration,
			Detail: fmt.Sprintf("%s: sector %s exposure %.2f exceeds cap %.2f",
				symbol, sector, sectorExposure, m.config.MaxSectorExposure*value),
		}
	}
	return nil
}

// ApproveClose turns a close proposal into a close instruction for the open
// position in the proposal's slot. Closes are never vetoed; the only way
// this fails is missing position or missing market data.
func (m *Manager) ApproveClose(p *types.TradeProposal, snap *types.PortfolioSnapshot, view MarketView, now time.Time) (*types.AcceptedTrade, error) {
	key := types.PositionKey{Symbol: p.Symbol, Slot: p.TargetSlot}
	pos, ok := snap.Positions[key]
	if !ok {
		return nil, errors.NewValidation(p.Symbol, fmt.Sprintf("no open %s position to close", p.TargetSlot))
	}
	return m.closeTrade(pos, view, "signal_exit", now)
}

// EvaluateExits checks every open position against its exit rules and
// returns close instructions for the breached ones. Exit closes are
// unconditional: no risk budget can veto them. Positions whose market data
// is missing from the view are left open for this cycle. Output order is
// deterministic (sorted by symbol then slot).
func (m *Manager) EvaluateExits(snap *types.PortfolioSnapshot, view MarketView, now time.Time) []types.AcceptedTrade {
	keys := make([]types.PositionKey, 0, len(snap.Positions))
	for key := range snap.Positions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Slot < keys[j].Slot
	})

	var closes []types.AcceptedTrade
	for _, key := range keys {
		pos := snap.Positions[key]
		reason := m.exitReason(pos, view, now)
		if reason == "" {
			continue
		}
		trade, err := m.closeTrade(pos, view, reason, now)
		if err != nil {
			continue
		}
		closes = append(closes, *trade)
	}
	return closes
}

// exitReason returns the triggered exit rule for a position, or "" when it
// should stay open.
func (m *Manager) exitReason(pos types.Position, view MarketView, now time.Time) string {
	if pos.Instrument.IsOptions() {
		if !pos.Expiry.IsZero() && !now.Before(pos.Expiry) {
			return "expiry"
		}
		mark, ok := view.OptionMarks[types.PositionKey{Symbol: pos.Symbol, Slot: pos.Slot}]
		if !ok {
			return ""
		}
		if pos.StopLoss < 0 && mark <= pos.StopLoss {
			return "stop_loss"
		}
		if pos.TakeProfit > 0 && mark >= pos.TakeProfit {
			return "take_profit"
		}
		return ""
	}

	price, ok := view.Prices[pos.Symbol]
	if !ok || price <= 0 {
		return ""
	}
	// restored positions may carry no levels; only the loss backstop applies
	if pos.StopLoss > 0 && pos.TakeProfit > 0 {
		if pos.Direction == types.DirectionLong {
			if price <= pos.StopLoss {
				return "stop_loss"
			}
			if price >= pos.TakeProfit {
				return "take_profit"
			}
		} else {
			if price >= pos.StopLoss {
				return "stop_loss"
			}
			if price <= pos.TakeProfit {
				return "take_profit"
			}
		}
	}

	if m.config.MaxLossPct > 0 && pos.CostBasis > 0 {
		loss := (pos.EntryPrice - price) * pos.Direction.Sign() * float64(pos.Quantity)
		if loss >= m.config.MaxLossPct*pos.CostBasis {
			return "max_loss"
		}
	}
	return ""
}

// closeTrade builds the full-quantity close instruction for a position.
func (m *Manager) closeTrade(pos types.Position, view MarketView, reason string, now time.Time) (*types.AcceptedTrade, error) {
	trade := &types.AcceptedTrade{
		Proposal: types.TradeProposal{
			Symbol:     pos.Symbol,
			Instrument: pos.Instrument,
			Direction:  pos.Direction,
			Close:      true,
			TargetSlot: pos.Slot,
		},
		Quantity:  pos.Quantity,
		Close:     true,
		Slot:      pos.Slot,
		Reason:    reason,
		Timestamp: now,
	}

	if pos.Instrument.IsOptions() {
		mark, ok := view.OptionMarks[types.PositionKey{Symbol: pos.Symbol, Slot: pos.Slot}]
		if !ok {
			return nil, errors.NewDataUnavailable(pos.Symbol, "no mark for open options structure", nil)
		}
		trade.ExitPnL = mark * float64(pos.Quantity)
		return trade, nil
	}

	price, ok := view.Prices[pos.Symbol]
	if !ok || price <= 0 {
		return nil, errors.NewDataUnavailable(pos.Symbol, "no price for open position", nil)
	}
	trade.ExitPrice = price
	return trade, nil
}
