package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

func testConfig() Config {
	return Config{
		RiskPerTrade:      0.02,
		MaxPortfolioRisk:  0.10,
		MaxSymbolExposure: 0.50,
		MaxSectorExposure: 0.80,
		MaxLossPct:        0.20,
		Sectors:           map[string]string{"AAPL": "tech", "MSFT": "tech"},
	}
}

func snapshot(cash float64) *types.PortfolioSnapshot {
	return &types.PortfolioSnapshot{
		InitialCapital: 100000,
		Cash:           cash,
		Positions:      map[types.PositionKey]types.Position{},
	}
}

func equityProposal(symbol string, entry, stop, take float64) *types.TradeProposal {
	return &types.TradeProposal{
		Symbol:     symbol,
		Instrument: types.InstrumentEquity,
		Direction:  types.DirectionLong,
		TargetSlot: types.SlotEquity,
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: take,
	}
}

func TestEvaluate_SizesByRiskPerTrade(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()

	// 100000 * 0.02 / (50 - 47.50) = 800 shares
	accepted, rej := m.Evaluate(equityProposal("AAPL", 50, 47.50, 57.50), snapshot(100000), now)

	require.Nil(t, rej)
	require.NotNil(t, accepted)
	assert.Equal(t, 800, accepted.Quantity)
	assert.InDelta(t, 2000.0, accepted.CapitalAtRisk, 1e-9)
	assert.Equal(t, types.SlotEquity, accepted.Slot)
}

func TestEvaluate_InsufficientCash(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	snap := snapshot(100000)
	// book value stays at 100000 but most of it is tied up
	snap.Cash = 39999
	snap.Positions[types.PositionKey{Symbol: "MSFT", Slot: types.SlotEquity}] = types.Position{
		Symbol: "MSFT", Slot: types.SlotEquity, CostBasis: 60001,
	}

	// sized cost is 800 * 50 = 40000, one dollar more than cash
	accepted, rej := m.Evaluate(equityProposal("AAPL", 50, 47.50, 57.50), snap, now)

	assert.Nil(t, accepted)
	require.NotNil(t, rej)
	assert.Equal(t, RejectInsufficientCash, rej.Reason)
}

func TestEvaluate_RiskCeiling(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	snap := snapshot(100000)
	snap.RiskInUse = 9000 // ceiling is 10000; this trade would add 2000

	accepted, rej := m.Evaluate(equityProposal("AAPL", 50, 47.50, 57.50), snap, now)

	assert.Nil(t, accepted)
	require.NotNil(t, rej)
	assert.Equal(t, RejectRiskCeiling, rej.Reason)
}

func TestEvaluate_SymbolConcentration(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSymbolExposure = 0.30
	m := NewManager(cfg)
	now := time.Now()
	snap := snapshot(70000)
	snap.Positions[types.PositionKey{Symbol: "AAPL", Slot: types.SlotOptions}] = types.Position{
		Symbol: "AAPL", Slot: types.SlotOptions, Instrument: types.InstrumentBullCallSpread, CostBasis: 30000,
	}

	// 30000 held + 40000 new = 70000 > 0.30 * 100000
	accepted, rej := m.Evaluate(equityProposal("AAPL", 50, 47.50, 57.50), snap, now)

	assert.Nil(t, accepted)
	require.NotNil(t, rej)
	assert.Equal(t, RejectConcentration, rej.Reason)
}

func TestEvaluate_SectorConcentration(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSectorExposure = 0.50
	m := NewManager(cfg)
	now := time.Now()
	snap := snapshot(80000)
	snap.Positions[types.PositionKey{Symbol: "MSFT", Slot: types.SlotEquity}] = types.Position{
		Symbol: "MSFT", Slot: types.SlotEquity, CostBasis: 20000,
	}

	// tech sector: 20000 held + 40000 new = 60000 > 0.50 * 100000
	accepted, rej := m.Evaluate(equityProposal("AAPL", 50, 47.50, 57.50), snap, now)

	assert.Nil(t, accepted)
	require.NotNil(t, rej)
	assert.Equal(t, RejectConcentration, rej.Reason)
}

func TestEvaluate_ZeroQuantity(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()

	// unit risk 5000 > risk capital 2000
	accepted, rej := m.Evaluate(equityProposal("BRK-A", 700000, 695000, 750000), snapshot(100000), now)

	assert.Nil(t, accepted)
	require.NotNil(t, rej)
	assert.Equal(t, RejectZeroQuantity, rej.Reason)
}

func TestEvaluate_NoStopDistance(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()

	accepted, rej := m.Evaluate(equityProposal("AAPL", 50, 50, 60), snapshot(100000), now)

	assert.Nil(t, accepted)
	require.NotNil(t, rej)
	assert.Equal(t, RejectInvalidLevels, rej.Reason)
}

func TestEvaluate_InvertedLongLevelsRejected(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()

	// stop above entry and take below it would invert the exit rules
	accepted, rej := m.Evaluate(equityProposal("AAPL", 50, 52.50, 45), snapshot(100000), now)

	assert.Nil(t, accepted)
	require.NotNil(t, rej)
	assert.Equal(t, RejectInvalidLevels, rej.Reason)
}

func TestEvaluate_ShortLevelsInvert(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	p := equityProposal("AAPL", 50, 52.50, 45)
	p.Direction = types.DirectionShort

	accepted, rej := m.Evaluate(p, snapshot(100000), now)

	require.Nil(t, rej)
	assert.Equal(t, 800, accepted.Quantity)

	p.Direction = types.DirectionLong
	_, rej = m.Evaluate(p, snapshot(100000), now)
	require.NotNil(t, rej)
	assert.Equal(t, RejectInvalidLevels, rej.Reason)
}

func TestEvaluate_OptionsLevelsMustStraddleZero(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	p := &types.TradeProposal{
		Symbol:     "AAPL",
		Instrument: types.InstrumentBullCallSpread,
		Direction:  types.DirectionLong,
		TargetSlot: types.SlotOptions,
		EntryPrice: 500,
		StopLoss:   400, // P&L stop must be negative
		TakeProfit: 250,
		MaxLoss:    500,
		MaxProfit:  500,
	}

	accepted, rej := m.Evaluate(p, snapshot(100000), now)

	assert.Nil(t, accepted)
	require.NotNil(t, rej)
	assert.Equal(t, RejectInvalidLevels, rej.Reason)
}

func TestEvaluate_LotSizeRoundsDown(t *testing.T) {
	cfg := testConfig()
	cfg.LotSize = 300
	m := NewManager(cfg)
	now := time.Now()

	// raw sizing gives 800 shares; lot 300 rounds down to 600
	accepted, rej := m.Evaluate(equityProposal("AAPL", 50, 47.50, 57.50), snapshot(100000), now)

	require.Nil(t, rej)
	assert.Equal(t, 600, accepted.Quantity)
	assert.InDelta(t, 1500.0, accepted.CapitalAtRisk, 1e-9)
}

func TestEvaluate_LotSizeAboveQuantityRejects(t *testing.T) {
	cfg := testConfig()
	cfg.LotSize = 1000
	m := NewManager(cfg)
	now := time.Now()

	accepted, rej := m.Evaluate(equityProposal("AAPL", 50, 47.50, 57.50), snapshot(100000), now)

	assert.Nil(t, accepted)
	require.NotNil(t, rej)
	assert.Equal(t, RejectZeroQuantity, rej.Reason)
}

func TestEvaluate_SizesOptionsByMaxLoss(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	p := &types.TradeProposal{
		Symbol:     "AAPL",
		Instrument: types.InstrumentBullCallSpread,
		Direction:  types.DirectionLong,
		TargetSlot: types.SlotOptions,
		EntryPrice: 500,
		StopLoss:   -400,
		TakeProfit: 250,
		MaxLoss:    500,
		MaxProfit:  500,
	}

	accepted, rej := m.Evaluate(p, snapshot(100000), now)

	require.Nil(t, rej)
	// 2000 risk capital / 500 max loss per structure = 4 structures
	assert.Equal(t, 4, accepted.Quantity)
	assert.InDelta(t, 2000.0, accepted.CapitalAtRisk, 1e-9)
	assert.Equal(t, types.SlotOptions, accepted.Slot)
}

func TestEvaluate_Deterministic(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	snap := snapshot(100000)
	p := equityProposal("AAPL", 50, 47.50, 57.50)

	first, _ := m.Evaluate(p, snap, now)
	second, _ := m.Evaluate(p, snap, now)

	assert.Equal(t, first, second)
}

func openLong(symbol string, qty int, entry, stop, take float64) types.Position {
	return types.Position{
		Symbol:     symbol,
		Instrument: types.InstrumentEquity,
		Slot:       types.SlotEquity,
		Direction:  types.DirectionLong,
		Quantity:   qty,
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: take,
		CostBasis:  entry * float64(qty),
	}
}

func TestEvaluateExits_StopLossBreach(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	snap := snapshot(60000)
	snap.Positions[types.PositionKey{Symbol: "AAPL", Slot: types.SlotEquity}] = openLong("AAPL", 400, 100, 95, 115)

	closes := m.EvaluateExits(snap, MarketView{Prices: map[string]float64{"AAPL": 94}}, now)

	require.Len(t, closes, 1)
	assert.True(t, closes[0].Close)
	assert.Equal(t, 400, closes[0].Quantity)
	assert.Equal(t, "stop_loss", closes[0].Reason)
	assert.InDelta(t, 94.0, closes[0].ExitPrice, 1e-9)
}

func TestEvaluateExits_TakeProfitBreach(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	snap := snapshot(60000)
	snap.Positions[types.PositionKey{Symbol: "AAPL", Slot: types.SlotEquity}] = openLong("AAPL", 400, 100, 95, 115)

	closes := m.EvaluateExits(snap, MarketView{Prices: map[string]float64{"AAPL": 116}}, now)

	require.Len(t, closes, 1)
	assert.Equal(t, "take_profit", closes[0].Reason)
}

func TestEvaluateExits_ShortDirectionInverts(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	pos := openLong("AAPL", 400, 100, 105, 85)
	pos.Direction = types.DirectionShort
	snap := snapshot(60000)
	snap.Positions[types.PositionKey{Symbol: "AAPL", Slot: types.SlotEquity}] = pos

	closes := m.EvaluateExits(snap, MarketView{Prices: map[string]float64{"AAPL": 106}}, now)

	require.Len(t, closes, 1)
	assert.Equal(t, "stop_loss", closes[0].Reason)
}

func TestEvaluateExits_InsideBandStaysOpen(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	snap := snapshot(60000)
	snap.Positions[types.PositionKey{Symbol: "AAPL", Slot: types.SlotEquity}] = openLong("AAPL", 400, 100, 95, 115)

	closes := m.EvaluateExits(snap, MarketView{Prices: map[string]float64{"AAPL": 100}}, now)

	assert.Empty(t, closes)
}

func TestEvaluateExits_MissingPriceSkipped(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	snap := snapshot(60000)
	snap.Positions[types.PositionKey{Symbol: "AAPL", Slot: types.SlotEquity}] = openLong("AAPL", 400, 100, 95, 115)

	closes := m.EvaluateExits(snap, MarketView{}, now)

	assert.Empty(t, closes)
}

func optionsPosition(symbol string, qty int, maxLoss, maxProfit float64, expiry time.Time) types.Position {
	return types.Position{
		Symbol:     symbol,
		Instrument: types.InstrumentIronCondor,
		Slot:       types.SlotOptions,
		Quantity:   qty,
		StopLoss:   -0.80 * maxLoss,
		TakeProfit: 0.50 * maxProfit,
		MaxLoss:    maxLoss,
		MaxProfit:  maxProfit,
		Expiry:     expiry,
		CostBasis:  maxLoss * float64(qty),
	}
}

func TestEvaluateExits_OptionsStopOnMark(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	snap := snapshot(60000)
	key := types.PositionKey{Symbol: "AAPL", Slot: types.SlotOptions}
	snap.Positions[key] = optionsPosition("AAPL", 4, 500, 400, now.AddDate(0, 0, 30))

	// stop is -400 per structure
	closes := m.EvaluateExits(snap, MarketView{OptionMarks: map[types.PositionKey]float64{key: -410}}, now)

	require.Len(t, closes, 1)
	assert.Equal(t, "stop_loss", closes[0].Reason)
	assert.InDelta(t, -1640.0, closes[0].ExitPnL, 1e-9)
}

func TestEvaluateExits_OptionsExpiry(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	snap := snapshot(60000)
	key := types.PositionKey{Symbol: "AAPL", Slot: types.SlotOptions}
	snap.Positions[key] = optionsPosition("AAPL", 4, 500, 400, now.AddDate(0, 0, -1))

	closes := m.EvaluateExits(snap, MarketView{OptionMarks: map[types.PositionKey]float64{key: 50}}, now)

	require.Len(t, closes, 1)
	assert.Equal(t, "expiry", closes[0].Reason)
	assert.InDelta(t, 200.0, closes[0].ExitPnL, 1e-9)
}

func TestEvaluateExits_DeterministicOrder(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	snap := snapshot(20000)
	snap.Positions[types.PositionKey{Symbol: "MSFT", Slot: types.SlotEquity}] = openLong("MSFT", 100, 100, 95, 115)
	snap.Positions[types.PositionKey{Symbol: "AAPL", Slot: types.SlotEquity}] = openLong("AAPL", 100, 100, 95, 115)

	view := MarketView{Prices: map[string]float64{"AAPL": 94, "MSFT": 94}}
	closes := m.EvaluateExits(snap, view, now)

	require.Len(t, closes, 2)
	assert.Equal(t, "AAPL", closes[0].Proposal.Symbol)
	assert.Equal(t, "MSFT", closes[1].Proposal.Symbol)
}

func TestApproveClose(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()
	snap := snapshot(60000)
	snap.Positions[types.PositionKey{Symbol: "AAPL", Slot: types.SlotEquity}] = openLong("AAPL", 400, 100, 95, 115)

	p := &types.TradeProposal{Symbol: "AAPL", Close: true, TargetSlot: types.SlotEquity}
	trade, err := m.ApproveClose(p, snap, MarketView{Prices: map[string]float64{"AAPL": 101}}, now)

	require.NoError(t, err)
	assert.True(t, trade.Close)
	assert.Equal(t, 400, trade.Quantity)
	assert.Equal(t, "signal_exit", trade.Reason)
	assert.InDelta(t, 101.0, trade.ExitPrice, 1e-9)
}

func TestApproveClose_NoPosition(t *testing.T) {
	m := NewManager(testConfig())
	now := time.Now()

	p := &types.TradeProposal{Symbol: "AAPL", Close: true, TargetSlot: types.SlotEquity}
	_, err := m.ApproveClose(p, snapshot(100000), MarketView{}, now)

	assert.Error(t, err)
}
