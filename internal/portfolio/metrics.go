package portfolio

import (
	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// Metrics summarizes realized trading performance.
type Metrics struct {
	TotalTrades  int     // closed trades
	WinningCount int
	LosingCount  int
	WinRate      float64 // fraction of closed trades with positive P&L
	TotalProfit  float64
	AvgProfit    float64 // mean P&L per closed trade
	MaxDrawdown  float64 // deepest peak-to-trough dip in realized equity
}

// ComputeMetrics derives performance metrics from an ordered trade record
// log. Recomputing from the full log always matches the live portfolio's
// realized P&L, so the journal alone is enough for analytics.
func ComputeMetrics(initialCapital float64, records []types.TradeRecord) Metrics {
	var m Metrics

	equity := initialCapital
	peak := initialCapital
	for _, rec := range records {
		if rec.Action != types.TradeClose {
			continue
		}
		m.TotalTrades++
		m.TotalProfit += rec.PnL
		if rec.PnL > 0 {
			m.WinningCount++
		} else {
			m.LosingCount++
		}

		equity += rec.PnL
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > m.MaxDrawdown {
				m.MaxDrawdown = dd
			}
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningCount) / float64(m.TotalTrades)
		m.AvgProfit = m.TotalProfit / float64(m.TotalTrades)
	}
	return m
}
