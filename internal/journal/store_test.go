package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func record(id int64, symbol string, action types.TradeAction, ts time.Time) *types.TradeRecord {
	return &types.TradeRecord{
		ID:         id,
		Timestamp:  ts,
		Symbol:     symbol,
		Instrument: types.InstrumentEquity,
		Slot:       types.SlotEquity,
		Direction:  types.DirectionLong,
		Action:     action,
		Quantity:   100,
		Price:      50,
		CostBasis:  5000,
		Reason:     "signal_entry",
		Score:      0.6,
		Confidence: 0.8,
	}
}

func TestAppendAndQuery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.Append(ctx, record(1, "AAPL", types.TradeOpen, ts)))
	require.NoError(t, store.Append(ctx, record(2, "MSFT", types.TradeOpen, ts.Add(time.Minute))))

	records, err := store.Records(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, "AAPL", records[0].Symbol)
	assert.Equal(t, types.TradeOpen, records[0].Action)
	assert.Equal(t, types.SlotEquity, records[0].Slot)
	assert.True(t, records[0].Timestamp.Equal(ts))
}

func TestAppend_IdempotentOnID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ts := time.Now()

	rec := record(1, "AAPL", types.TradeOpen, ts)
	require.NoError(t, store.Append(ctx, rec))

	// replaying the same record must not duplicate or overwrite it
	dup := record(1, "AAPL", types.TradeOpen, ts)
	dup.Price = 999
	require.NoError(t, store.Append(ctx, dup))

	records, err := store.Records(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 50.0, records[0].Price, 1e-9)
}

func TestRecords_TimeRange(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.Append(ctx, record(1, "AAPL", types.TradeOpen, base)))
	require.NoError(t, store.Append(ctx, record(2, "MSFT", types.TradeOpen, base.Add(time.Hour))))
	require.NoError(t, store.Append(ctx, record(3, "NVDA", types.TradeOpen, base.Add(2*time.Hour))))

	records, err := store.Records(ctx, base.Add(30*time.Minute), base.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "MSFT", records[0].Symbol)
}

func TestRecordsAfter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ts := time.Now()

	require.NoError(t, store.Append(ctx, record(1, "AAPL", types.TradeOpen, ts)))
	require.NoError(t, store.Append(ctx, record(2, "AAPL", types.TradeClose, ts)))
	require.NoError(t, store.Append(ctx, record(3, "MSFT", types.TradeOpen, ts)))

	records, err := store.RecordsAfter(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].ID)
	assert.Equal(t, int64(3), records[1].ID)
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	expiry := time.Now().UTC().AddDate(0, 0, 45).Truncate(time.Millisecond)

	key := types.PositionKey{Symbol: "AAPL", Slot: types.SlotOptions}
	snap := &types.PortfolioSnapshot{
		InitialCapital: 100000,
		Cash:           58000,
		RealizedPnL:    -2000,
		RiskInUse:      1600,
		Positions: map[types.PositionKey]types.Position{
			key: {
				Symbol:     "AAPL",
				Instrument: types.InstrumentBullCallSpread,
				Slot:       types.SlotOptions,
				Quantity:   4,
				StopLoss:   -400,
				TakeProfit: 250,
				Legs: []types.OptionLeg{
					{Type: types.OptionCall, Action: types.LegBuy, Strike: 95, Premium: 7, Quantity: 1},
					{Type: types.OptionCall, Action: types.LegSell, Strike: 105, Premium: 2, Quantity: 1},
				},
				MaxLoss:   500,
				MaxProfit: 500,
				Expiry:    expiry,
				CostBasis: 2000,
			},
		},
		TakenAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, store.SaveSnapshot(ctx, snap, 7))

	loaded, lastID, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), lastID)
	assert.InDelta(t, 58000.0, loaded.Cash, 1e-9)
	assert.InDelta(t, -2000.0, loaded.RealizedPnL, 1e-9)

	pos := loaded.Positions[key]
	assert.Equal(t, 4, pos.Quantity)
	assert.InDelta(t, -400.0, pos.StopLoss, 1e-9)
	require.Len(t, pos.Legs, 2)
	assert.Equal(t, types.LegSell, pos.Legs[1].Action)
	assert.True(t, pos.Expiry.Equal(expiry))
}

func TestSaveSnapshot_Overwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := &types.PortfolioSnapshot{InitialCapital: 100000, Cash: 100000, TakenAt: time.Now()}
	require.NoError(t, store.SaveSnapshot(ctx, first, 0))

	second := &types.PortfolioSnapshot{InitialCapital: 100000, Cash: 90000, TakenAt: time.Now()}
	require.NoError(t, store.SaveSnapshot(ctx, second, 3))

	loaded, lastID, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), lastID)
	assert.InDelta(t, 90000.0, loaded.Cash, 1e-9)
}

func TestLoadSnapshot_Empty(t *testing.T) {
	store := openTestStore(t)

	loaded, lastID, err := store.LoadSnapshot(context.Background())

	require.NoError(t, err)
	assert.Nil(t, loaded)
	assert.Equal(t, int64(0), lastID)
}
