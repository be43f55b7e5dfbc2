package portfolio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BlockByBlockAI/stocktrading/internal/errors"
	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// Manager owns the authoritative portfolio state: cash, open positions and
// realized P&L. It is the single writer; everything else reads immutable
// snapshots. Snapshot reads never block an in-progress trade application.
type Manager struct {
	mu sync.Mutex

	initialCapital float64
	cash           float64
	realizedPnL    float64
	riskInUse      float64
	positions      map[types.PositionKey]types.Position
	nextRecordID   int64

	snapshot atomic.Pointer[types.PortfolioSnapshot]
}

func NewManager(initialCapital float64) *Manager {
	m := &Manager{
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[types.PositionKey]types.Position),
		nextRecordID:   1,
	}
	m.publish(time.Now())
	return m
}

// Snapshot returns the last fully-committed portfolio state. Never blocks.
func (m *Manager) Snapshot() *types.PortfolioSnapshot {
	return m.snapshot.Load()
}

// Apply executes an accepted trade atomically: state mutates and the trade
// record exists together, or the trade did not happen. A returned
// StateInconsistency means a logic defect, not a market condition; the
// caller must stop applying trades.
func (m *Manager) Apply(trade *types.AcceptedTrade) (*types.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var record *types.TradeRecord
	var err error
	if trade.Close {
		record, err = m.applyClose(trade)
	} else {
		record, err = m.applyOpen(trade)
	}
	if err != nil {
		return nil, err
	}

	if err := m.checkInvariants(); err != nil {
		return nil, err
	}
	m.publish(trade.Timestamp)
	return record, nil
}

func (m *Manager) applyOpen(trade *types.AcceptedTrade) (*types.TradeRecord, error) {
	p := trade.Proposal
	key := types.PositionKey{Symbol: p.Symbol, Slot: trade.Slot}
	if _, exists := m.positions[key]; exists {
		return nil, errors.NewStateInconsistency(
			fmt.Sprintf("open for %s/%s but slot already holds a position", key.Symbol, key.Slot))
	}
	if trade.Quantity <= 0 {
		return nil, errors.NewStateInconsistency(
			fmt.Sprintf("open for %s with quantity %d", p.Symbol, trade.Quantity))
	}

	costBasis := float64(trade.Quantity) * p.UnitCost()
	if costBasis > m.cash {
		return nil, errors.NewStateInconsistency(
			fmt.Sprintf("open for %s costs %.2f with only %.2f cash", p.Symbol, costBasis, m.cash))
	}

	m.cash -= costBasis
	m.riskInUse += trade.CapitalAtRisk
	m.positions[key] = types.Position{
		Symbol:        p.Symbol,
		Instrument:    p.Instrument,
		Slot:          trade.Slot,
		Direction:     p.Direction,
		Quantity:      trade.Quantity,
		EntryPrice:    p.EntryPrice,
		EntryTime:     trade.Timestamp,
		StopLoss:      p.StopLoss,
		TakeProfit:    p.TakeProfit,
		Legs:          p.Legs,
		MaxLoss:       p.MaxLoss,
		MaxProfit:     p.MaxProfit,
		Expiry:        p.Expiry,
		CostBasis:     costBasis,
		CapitalAtRisk: trade.CapitalAtRisk,
	}

	return m.appendRecord(trade, types.TradeOpen, p.EntryPrice, costBasis, 0), nil
}

func (m *Manager) applyClose(trade *types.AcceptedTrade) (*types.TradeRecord, error) {
	key := types.PositionKey{Symbol: trade.Proposal.Symbol, Slot: trade.Slot}
	pos, exists := m.positions[key]
	if !exists {
		return nil, errors.NewStateInconsistency(
			fmt.Sprintf("close for %s/%s but no open position", key.Symbol, key.Slot))
	}

	var pnl, proceeds, exitPrice float64
	if pos.Instrument.IsOptions() {
		pnl = trade.ExitPnL
		proceeds = pos.CostBasis + pnl
		exitPrice = trade.ExitPnL
	} else {
		exitPrice = trade.ExitPrice
		pnl = (exitPrice - pos.EntryPrice) * pos.Direction.Sign() * float64(pos.Quantity)
		proceeds = pos.CostBasis + pnl
	}

	m.cash += proceeds
	m.realizedPnL += pnl
	m.riskInUse -= pos.CapitalAtRisk
	if m.riskInUse < 0 {
		m.riskInUse = 0
	}
	delete(m.positions, key)

	return m.appendRecord(trade, types.TradeClose, exitPrice, pos.CostBasis, pnl), nil
}

func (m *Manager) appendRecord(trade *types.AcceptedTrade, action types.TradeAction, price, costBasis, pnl float64) *types.TradeRecord {
	record := &types.TradeRecord{
		ID:         m.nextRecordID,
		Timestamp:  trade.Timestamp,
		Symbol:     trade.Proposal.Symbol,
		Instrument: trade.Proposal.Instrument,
		Slot:       trade.Slot,
		Direction:  trade.Proposal.Direction,
		Action:     action,
		Quantity:   trade.Quantity,
		Price:      price,
		CostBasis:  costBasis,
		PnL:        pnl,
		Reason:     trade.Reason,
		Score:      trade.Proposal.Rationale.Score,
		Confidence: trade.Proposal.Rationale.Confidence,
	}
	m.nextRecordID++
	return record
}

// checkInvariants verifies no money was manufactured: cash plus held cost
// bases can never exceed initial capital plus realized P&L.
func (m *Manager) checkInvariants() error {
	if m.cash < 0 {
		return errors.NewStateInconsistency(fmt.Sprintf("negative cash %.2f", m.cash))
	}
	held := 0.0
	for _, pos := range m.positions {
		held += pos.CostBasis
	}
	limit := m.initialCapital + m.realizedPnL
	if m.cash+held > limit+1e-6 {
		return errors.NewStateInconsistency(
			fmt.Sprintf("cash %.2f + held %.2f exceeds capital %.2f + realized %.2f",
				m.cash, held, m.initialCapital, m.realizedPnL))
	}
	return nil
}

// publish swaps in a fresh immutable snapshot. Caller holds the lock.
func (m *Manager) publish(at time.Time) {
	positions := make(map[types.PositionKey]types.Position, len(m.positions))
	for k, v := range m.positions {
		positions[k] = v
	}
	m.snapshot.Store(&types.PortfolioSnapshot{
		InitialCapital: m.initialCapital,
		Cash:           m.cash,
		RealizedPnL:    m.realizedPnL,
		RiskInUse:      m.riskInUse,
		Positions:      positions,
		TakenAt:        at,
	})
}

// RestoreSnapshot seeds portfolio state from a persisted snapshot, keeping
// full position detail (stop/take levels, legs). lastRecordID is the
// high-water mark of journaled records already reflected in the snapshot;
// newer records are applied afterwards through Restore.
func (m *Manager) RestoreSnapshot(snap *types.PortfolioSnapshot, lastRecordID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.initialCapital = snap.InitialCapital
	m.cash = snap.Cash
	m.realizedPnL = snap.RealizedPnL
	m.riskInUse = snap.RiskInUse
	m.positions = make(map[types.PositionKey]types.Position, len(snap.Positions))
	for k, v := range snap.Positions {
		m.positions[k] = v
	}
	m.nextRecordID = lastRecordID + 1

	if err := m.checkInvariants(); err != nil {
		return err
	}
	m.publish(snap.TakenAt)
	return nil
}

// Restore rebuilds portfolio state by replaying journaled trade records in
// ID order. Replay is idempotent on the record IDs: records at or below the
// current high-water mark are skipped.
func (m *Manager) Restore(records []types.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var at time.Time
	for _, rec := range records {
		if rec.ID < m.nextRecordID {
			continue
		}
		if err := m.replayRecord(rec); err != nil {
			return err
		}
		m.nextRecordID = rec.ID + 1
		at = rec.Timestamp
	}
	if err := m.checkInvariants(); err != nil {
		return err
	}
	if at.IsZero() {
		at = time.Now()
	}
	m.publish(at)
	return nil
}

func (m *Manager) replayRecord(rec types.TradeRecord) error {
	key := types.PositionKey{Symbol: rec.Symbol, Slot: rec.Slot}
	switch rec.Action {
	case types.TradeOpen:
		if _, exists := m.positions[key]; exists {
			return errors.NewStateInconsistency(
				fmt.Sprintf("replay open %d for %s/%s over existing position", rec.ID, key.Symbol, key.Slot))
		}
		m.cash -= rec.CostBasis
		m.positions[key] = types.Position{
			Symbol:     rec.Symbol,
			Instrument: rec.Instrument,
			Slot:       rec.Slot,
			Direction:  rec.Direction,
			Quantity:   rec.Quantity,
			EntryPrice: rec.Price,
			EntryTime:  rec.Timestamp,
			CostBasis:  rec.CostBasis,
		}
	case types.TradeClose:
		pos, exists := m.positions[key]
		if !exists {
			return errors.NewStateInconsistency(
				fmt.Sprintf("replay close %d for %s/%s with no open position", rec.ID, key.Symbol, key.Slot))
		}
		m.cash += pos.CostBasis + rec.PnL
		m.realizedPnL += rec.PnL
		delete(m.positions, key)
	default:
		return errors.NewStateInconsistency(fmt.Sprintf("replay record %d with action %q", rec.ID, rec.Action))
	}
	return nil
}
