package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// Store is the durable trade journal: an append-only trade record log plus
// the latest portfolio snapshot, in a single SQLite file. Appends are
// idempotent on record ID so a crashed cycle can be replayed safely.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS trade_records (
  id INTEGER PRIMARY KEY,
  ts_ms INTEGER NOT NULL,
  symbol TEXT NOT NULL,
  instrument TEXT NOT NULL,
  slot TEXT NOT NULL,
  direction INTEGER NOT NULL,
  action TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price REAL NOT NULL,
  cost_basis REAL NOT NULL,
  pnl REAL NOT NULL,
  reason TEXT NOT NULL,
  score REAL NOT NULL,
  confidence REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_records_ts ON trade_records(ts_ms);
CREATE INDEX IF NOT EXISTS idx_trade_records_symbol ON trade_records(symbol);

CREATE TABLE IF NOT EXISTS portfolio_snapshots (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  taken_at_ms INTEGER NOT NULL,
  last_record_id INTEGER NOT NULL,
  payload TEXT NOT NULL
);
`)
	return err
}

// Append writes one trade record. Records are immutable: re-appending an
// already-journaled ID is a no-op, which makes post-crash replay safe.
func (s *Store) Append(ctx context.Context, rec *types.TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO trade_records
  (id, ts_ms, symbol, instrument, slot, direction, action, quantity, price, cost_basis, pnl, reason, score, confidence)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixMilli(), rec.Symbol, string(rec.Instrument), string(rec.Slot),
		int(rec.Direction), string(rec.Action), rec.Quantity, rec.Price, rec.CostBasis,
		rec.PnL, rec.Reason, rec.Score, rec.Confidence)
	return err
}

// Records returns journaled records in the given time range, ordered by ID.
// Zero bounds mean unbounded.
func (s *Store) Records(ctx context.Context, from, to time.Time) ([]types.TradeRecord, error) {
	fromMs := int64(0)
	if !from.IsZero() {
		fromMs = from.UnixMilli()
	}
	toMs := int64(1<<62 - 1)
	if !to.IsZero() {
		toMs = to.UnixMilli()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts_ms, symbol, instrument, slot, direction, action, quantity, price, cost_basis, pnl, reason, score, confidence
FROM trade_records WHERE ts_ms >= ? AND ts_ms <= ? ORDER BY id`, fromMs, toMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.TradeRecord
	for rows.Next() {
		var rec types.TradeRecord
		var tsMs int64
		var instrument, slot, action string
		var direction int
		if err := rows.Scan(&rec.ID, &tsMs, &rec.Symbol, &instrument, &slot, &direction, &action,
			&rec.Quantity, &rec.Price, &rec.CostBasis, &rec.PnL, &rec.Reason, &rec.Score, &rec.Confidence); err != nil {
			return nil, err
		}
		rec.Timestamp = time.UnixMilli(tsMs).UTC()
		rec.Instrument = types.InstrumentType(instrument)
		rec.Slot = types.Slot(slot)
		rec.Direction = types.Direction(direction)
		rec.Action = types.TradeAction(action)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordsAfter returns every record with ID greater than lastID, in ID
// order. Used to replay the tail written after the last saved snapshot.
func (s *Store) RecordsAfter(ctx context.Context, lastID int64) ([]types.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts_ms, symbol, instrument, slot, direction, action, quantity, price, cost_basis, pnl, reason, score, confidence
FROM trade_records WHERE id > ? ORDER BY id`, lastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.TradeRecord
	for rows.Next() {
		var rec types.TradeRecord
		var tsMs int64
		var instrument, slot, action string
		var direction int
		if err := rows.Scan(&rec.ID, &tsMs, &rec.Symbol, &instrument, &slot, &direction, &action,
			&rec.Quantity, &rec.Price, &rec.CostBasis, &rec.PnL, &rec.Reason, &rec.Score, &rec.Confidence); err != nil {
			return nil, err
		}
		rec.Timestamp = time.UnixMilli(tsMs).UTC()
		rec.Instrument = types.InstrumentType(instrument)
		rec.Slot = types.Slot(slot)
		rec.Direction = types.Direction(direction)
		rec.Action = types.TradeAction(action)
		out = append(out, rec)
	}
	return out, rows.Err()
}

type snapshotPayload struct {
	InitialCapital float64                       `json:"initial_capital"`
	Cash           float64                       `json:"cash"`
	RealizedPnL    float64                       `json:"realized_pnl"`
	RiskInUse      float64                       `json:"risk_in_use"`
	Positions      []positionPayload             `json:"positions"`
	TakenAt        time.Time                     `json:"taken_at"`
}

type positionPayload struct {
	Symbol        string               `json:"symbol"`
	Instrument    types.InstrumentType `json:"instrument"`
	Slot          types.Slot           `json:"slot"`
	Direction     types.Direction      `json:"direction"`
	Quantity      int                  `json:"quantity"`
	EntryPrice    float64              `json:"entry_price"`
	EntryTime     time.Time            `json:"entry_time"`
	StopLoss      float64              `json:"stop_loss"`
	TakeProfit    float64              `json:"take_profit"`
	Legs          []types.OptionLeg    `json:"legs,omitempty"`
	MaxLoss       float64              `json:"max_loss"`
	MaxProfit     float64              `json:"max_profit"`
	Expiry        time.Time            `json:"expiry"`
	CostBasis     float64              `json:"cost_basis"`
	CapitalAtRisk float64              `json:"capital_at_risk"`
}

// SaveSnapshot persists the latest committed portfolio state. Only the most
// recent snapshot is kept; history lives in the record log.
func (s *Store) SaveSnapshot(ctx context.Context, snap *types.PortfolioSnapshot, lastRecordID int64) error {
	payload := snapshotPayload{
		InitialCapital: snap.InitialCapital,
		Cash:           snap.Cash,
		RealizedPnL:    snap.RealizedPnL,
		RiskInUse:      snap.RiskInUse,
		TakenAt:        snap.TakenAt,
	}
	for _, pos := range snap.Positions {
		payload.Positions = append(payload.Positions, positionPayload{
			Symbol:        pos.Symbol,
			Instrument:    pos.Instrument,
			Slot:          pos.Slot,
			Direction:     pos.Direction,
			Quantity:      pos.Quantity,
			EntryPrice:    pos.EntryPrice,
			EntryTime:     pos.EntryTime,
			StopLoss:      pos.StopLoss,
			TakeProfit:    pos.TakeProfit,
			Legs:          pos.Legs,
			MaxLoss:       pos.MaxLoss,
			MaxProfit:     pos.MaxProfit,
			Expiry:        pos.Expiry,
			CostBasis:     pos.CostBasis,
			CapitalAtRisk: pos.CapitalAtRisk,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO portfolio_snapshots (id, taken_at_ms, last_record_id, payload)
VALUES (1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET taken_at_ms = excluded.taken_at_ms,
  last_record_id = excluded.last_record_id, payload = excluded.payload`,
		snap.TakenAt.UnixMilli(), lastRecordID, string(data))
	return err
}

// LoadSnapshot returns the persisted portfolio snapshot and the ID of the
// last record it reflects, or (nil, 0, nil) when none has been saved.
func (s *Store) LoadSnapshot(ctx context.Context) (*types.PortfolioSnapshot, int64, error) {
	var lastRecordID int64
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_record_id, payload FROM portfolio_snapshots WHERE id = 1`).Scan(&lastRecordID, &data)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var payload snapshotPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, 0, err
	}

	snap := &types.PortfolioSnapshot{
		InitialCapital: payload.InitialCapital,
		Cash:           payload.Cash,
		RealizedPnL:    payload.RealizedPnL,
		RiskInUse:      payload.RiskInUse,
		Positions:      make(map[types.PositionKey]types.Position, len(payload.Positions)),
		TakenAt:        payload.TakenAt,
	}
	for _, pp := range payload.Positions {
		key := types.PositionKey{Symbol: pp.Symbol, Slot: pp.Slot}
		snap.Positions[key] = types.Position{
			Symbol:        pp.Symbol,
			Instrument:    pp.Instrument,
			Slot:          pp.Slot,
			Direction:     pp.Direction,
			Quantity:      pp.Quantity,
			EntryPrice:    pp.EntryPrice,
			EntryTime:     pp.EntryTime,
			StopLoss:      pp.StopLoss,
			TakeProfit:    pp.TakeProfit,
			Legs:          pp.Legs,
			MaxLoss:       pp.MaxLoss,
			MaxProfit:     pp.MaxProfit,
			Expiry:        pp.Expiry,
			CostBasis:     pp.CostBasis,
			CapitalAtRisk: pp.CapitalAtRisk,
		}
	}
	return snap, lastRecordID, nil
}
