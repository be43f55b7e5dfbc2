package reporting

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// ConsoleReporter renders portfolio state and trade history as terminal
// tables.
type ConsoleReporter struct{}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintStartupInfo prints the engine configuration at launch.
func (r *ConsoleReporter) PrintStartupInfo(universe []string, initialCapital float64, interval time.Duration, timezone string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("ENGINE INITIALIZATION")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"📊 Universe", strings.Join(universe, ", ")},
		{"💰 Initial Capital", fmt.Sprintf("$%.2f", initialCapital)},
		{"⏰ Interval", interval.String()},
		{"🕒 Market Timezone", timezone},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 60, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

// PrintPortfolioStatus prints the current portfolio summary.
func (r *ConsoleReporter) PrintPortfolioStatus(snap *types.PortfolioSnapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("PORTFOLIO STATUS")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"💼 Cash", fmt.Sprintf("$%.2f", snap.Cash)},
		{"📒 Book Value", fmt.Sprintf("$%.2f", snap.Value())},
		{"💹 Realized P&L", fmt.Sprintf("$%.2f", snap.RealizedPnL)},
		{"🎯 Risk In Use", fmt.Sprintf("$%.2f", snap.RiskInUse)},
		{"📊 Open Positions", fmt.Sprintf("%d", len(snap.Positions))},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, WidthMax: 30, Align: text.AlignRight},
	})

	t.Render()
	fmt.Println()

	if len(snap.Positions) > 0 {
		r.printOpenPositions(snap)
	}
}

func (r *ConsoleReporter) printOpenPositions(snap *types.PortfolioSnapshot) {
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

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("OPEN POSITIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Instrument", "Dir", "Qty", "Entry", "Stop", "Take", "Cost Basis"})

	for _, key := range keys {
		pos := snap.Positions[key]
		t.AppendRow(table.Row{
			pos.Symbol,
			string(pos.Instrument),
			pos.Direction.String(),
			pos.Quantity,
			fmt.Sprintf("$%.2f", pos.EntryPrice),
			fmt.Sprintf("$%.2f", pos.StopLoss),
			fmt.Sprintf("$%.2f", pos.TakeProfit),
			fmt.Sprintf("$%.2f", pos.CostBasis),
		})
	}

	t.Render()
	fmt.Println()
}

// PrintTradeHistory prints executed trades, newest last.
func (r *ConsoleReporter) PrintTradeHistory(records []types.TradeRecord) {
	if len(records) == 0 {
		fmt.Println("📭 No trades recorded yet")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("TRADE HISTORY")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Time", "Symbol", "Action", "Instrument", "Qty", "Price", "P&L", "Reason"})

	for _, rec := range records {
		t.AppendRow(table.Row{
			rec.ID,
			rec.Timestamp.Format("01-02 15:04"),
			rec.Symbol,
			string(rec.Action),
			string(rec.Instrument),
			rec.Quantity,
			fmt.Sprintf("$%.2f", rec.Price),
			fmt.Sprintf("$%.2f", rec.PnL),
			rec.Reason,
		})
	}

	t.Render()
	fmt.Println()
}

// PrintPerformance prints realized performance metrics.
func (r *ConsoleReporter) PrintPerformance(winRate, totalProfit, avgProfit, maxDrawdown float64, totalTrades int) {
	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("📊 PERFORMANCE SUMMARY")
	fmt.Println(strings.Repeat("=", 50))

	fmt.Printf("🔄 Closed Trades:   %d\n", totalTrades)
	fmt.Printf("✅ Win Rate:        %.1f%%\n", winRate*100)
	fmt.Printf("💹 Total Profit:    $%.2f\n", totalProfit)
	fmt.Printf("💹 Avg Profit:      $%.2f\n", avgProfit)
	fmt.Printf("📉 Max Drawdown:    %.2f%%\n", maxDrawdown*100)
}
