package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/BlockByBlockAI/stocktrading/internal/errors"
	"github.com/BlockByBlockAI/stocktrading/internal/monitoring"
	"github.com/BlockByBlockAI/stocktrading/internal/risk"
	"github.com/BlockByBlockAI/stocktrading/internal/strategy"
	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// State is the engine's scheduling state.
type State int32

const (
	StateIdle State = iota
	StateMarketOpenCheck
	StateRunCycle
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateMarketOpenCheck:
		return "MARKET_OPEN_CHECK"
	case StateRunCycle:
		return "RUN_CYCLE"
	case StateStopped:
		return "STOPPED"
	default:
		return "IDLE"
	}
}

// Config holds the engine's scheduling parameters.
type Config struct {
	Universe    []string
	HistoryBars int
	Interval    time.Duration
}

// MarketData supplies quotes and price history.
type MarketData interface {
	Quote(symbol string) (types.Quote, error)
	HistoricalData(symbol string, bars int) ([]types.OHLCV, error)
}

// OptionsData supplies options chain snapshots.
type OptionsData interface {
	Chain(symbol string) (*types.OptionChain, error)
}

// SignalProvider produces one signal per symbol per cycle.
type SignalProvider interface {
	Source() types.SignalSource
	Collect(symbol string, now time.Time) (types.Signal, error)
}

// Aggregator folds per-source signals into one composite view.
type Aggregator interface {
	Aggregate(symbol string, signals []types.Signal) types.CompositeSignal
}

// Selector maps a composite signal to at most one proposal.
type Selector interface {
	Select(sig types.CompositeSignal, ctx strategy.MarketContext, snap *types.PortfolioSnapshot, now time.Time) *types.TradeProposal
}

// RiskManager vets proposals and evaluates exits.
type RiskManager interface {
	Evaluate(p *types.TradeProposal, snap *types.PortfolioSnapshot, now time.Time) (*types.AcceptedTrade, *risk.Rejection)
	ApproveClose(p *types.TradeProposal, snap *types.PortfolioSnapshot, view risk.MarketView, now time.Time) (*types.AcceptedTrade, error)
	EvaluateExits(snap *types.PortfolioSnapshot, view risk.MarketView, now time.Time) []types.AcceptedTrade
}

// Portfolio applies accepted trades and serves snapshots.
type Portfolio interface {
	Snapshot() *types.PortfolioSnapshot
	Apply(trade *types.AcceptedTrade) (*types.TradeRecord, error)
}

// Journal persists trade records and portfolio snapshots.
type Journal interface {
	Append(ctx context.Context, rec *types.TradeRecord) error
	SaveSnapshot(ctx context.Context, snap *types.PortfolioSnapshot, lastRecordID int64) error
}

// Notifier pushes trade alerts to an external channel.
type Notifier interface {
	NotifyTrade(rec *types.TradeRecord) error
}

// Logger is the session log surface the engine writes to.
type Logger interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
	LogTradeExecution(rec *types.TradeRecord)
	LogCycleSummary(snap *types.PortfolioSnapshot, trades, rejections int)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})                        {}
func (nopLogger) Warning(string, ...interface{})                     {}
func (nopLogger) Error(string, ...interface{})                       {}
func (nopLogger) LogTradeExecution(*types.TradeRecord)               {}
func (nopLogger) LogCycleSummary(*types.PortfolioSnapshot, int, int) {}

// Deps bundles the engine's collaborators. Clock, Calendar, Log, Notifier
// and Health are optional; the rest are required.
type Deps struct {
	Data       MarketData
	Options    OptionsData
	Providers  []SignalProvider
	Aggregator Aggregator
	Selector   Selector
	Risk       RiskManager
	Portfolio  Portfolio
	Journal    Journal
	Notifier   Notifier
	Log        Logger
	Health     *monitoring.HealthChecker
	Clock      Clock
	Calendar   Calendar
}

// Engine drives the trading loop: on each scheduled tick it checks market
// hours, then runs one cycle over the universe (signals, selection, risk,
// portfolio application) followed by the exit evaluation. There is exactly
// one writer: cycles never overlap, guarded by a run-in-progress flag.
type Engine struct {
	config Config
	deps   Deps
	log    Logger

	state        atomic.Int32
	running      atomic.Bool
	halted       atomic.Bool
	lastRecordID atomic.Int64
}

func New(config Config, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Calendar == nil {
		deps.Calendar = AlwaysOpenCalendar{}
	}
	log := deps.Log
	if log == nil {
		log = nopLogger{}
	}
	return &Engine{config: config, deps: deps, log: log}
}

// State returns the current scheduling state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Halted reports whether trade application is suspended after a state
// inconsistency.
func (e *Engine) Halted() bool {
	return e.halted.Load()
}

// ClearHalt re-enables trade application after manual review.
func (e *Engine) ClearHalt() {
	e.halted.Store(false)
	if e.deps.Health != nil {
		e.deps.Health.SetHalted(false)
	}
	e.log.Info("⚠️ Halt cleared, trade application re-enabled")
}

// Run ticks the engine on the configured interval until the context is
// cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info("🚀 Engine started: %d symbols, interval %s", len(e.config.Universe), e.config.Interval)

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	e.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			e.state.Store(int32(StateStopped))
			e.log.Info("🛑 Engine stopped")
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick performs one scheduled check: market-hours gate, then a cycle. Out
// of hours nothing downstream runs: no proposals, no risk checks.
func (e *Engine) Tick(ctx context.Context) {
	if e.halted.Load() {
		monitoring.RecordSkippedTick("halted")
		e.log.Warning("Tick skipped: engine halted pending manual review")
		return
	}

	e.state.Store(int32(StateMarketOpenCheck))
	now := e.deps.Clock.Now()
	if !e.deps.Calendar.IsOpen(now) {
		monitoring.RecordSkippedTick("market_closed")
		e.state.Store(int32(StateIdle))
		return
	}

	e.TryRunCycle(ctx)
}

// TryRunCycle starts a cycle unless one is already in progress. A refused
// start is a no-op, not an error.
func (e *Engine) TryRunCycle(ctx context.Context) bool {
	if !e.running.CompareAndSwap(false, true) {
		monitoring.RecordSkippedTick("cycle_in_progress")
		e.log.Warning("Cycle refused: %v", errors.NewScheduling("previous cycle still running"))
		return false
	}
	defer e.running.Store(false)

	e.state.Store(int32(StateRunCycle))
	defer e.state.Store(int32(StateIdle))

	e.runCycle(ctx)
	return true
}

func (e *Engine) runCycle(ctx context.Context) {
	now := e.deps.Clock.Now()
	trades, rejections := 0, 0

	// market data gathered during the cycle, reused for exit marks
	quotes := make(map[string]float64)
	chains := make(map[string]*types.OptionChain)

	for _, symbol := range e.config.Universe {
		select {
		case <-ctx.Done():
			e.log.Info("Cycle interrupted by shutdown after partial universe")
			return
		default:
		}

		executed, rejected, err := e.processSymbol(ctx, symbol, now, quotes, chains)
		trades += executed
		rejections += rejected
		if err != nil {
			e.halt(err)
			return
		}
	}

	// entries first, then the exit sweep: a position opened this cycle is
	// immediately subject to its exit rules
	snap := e.deps.Portfolio.Snapshot()
	view := e.marketView(snap, quotes, chains)
	for _, trade := range e.deps.Risk.EvaluateExits(snap, view, now) {
		trade := trade
		if err := e.applyTrade(ctx, &trade); err != nil {
			e.halt(err)
			return
		}
		trades++
	}

	final := e.deps.Portfolio.Snapshot()
	monitoring.RecordCycle()
	monitoring.UpdatePortfolio(final.Value(), len(final.Positions))
	if e.deps.Health != nil {
		e.deps.Health.CycleCompleted(now, final.Value())
	}
	if err := e.deps.Journal.SaveSnapshot(ctx, final, e.lastRecordID.Load()); err != nil {
		e.log.Error("Failed to persist portfolio snapshot: %v", err)
	}
	e.log.LogCycleSummary(final, trades, rejections)
}

// processSymbol runs the full pipeline for one symbol. Data and validation
// problems are absorbed here; only a state inconsistency propagates, since
// that must abort the cycle.
func (e *Engine) processSymbol(ctx context.Context, symbol string, now time.Time, quotes map[string]float64, chains map[string]*types.OptionChain) (trades, rejections int, fatal error) {
	quote, err := e.deps.Data.Quote(symbol)
	if err != nil {
		e.skipSymbol(symbol, "quote", err)
		return 0, 0, nil
	}
	history, err := e.deps.Data.HistoricalData(symbol, e.config.HistoryBars)
	if err != nil {
		e.skipSymbol(symbol, "history", err)
		return 0, 0, nil
	}
	chain, err := e.deps.Options.Chain(symbol)
	if err != nil {
		// equity strategies still work without a chain
		e.log.Warning("%s: options chain unavailable: %v", symbol, err)
		chain = nil
	}
	quotes[symbol] = quote.Price
	chains[symbol] = chain

	var signals []types.Signal
	for _, provider := range e.deps.Providers {
		sig, err := provider.Collect(symbol, now)
		if err != nil {
			e.log.Warning("%s: %s signal unavailable: %v", symbol, provider.Source(), err)
			monitoring.RecordError(string(errors.KindOf(err)))
			continue
		}
		signals = append(signals, sig)
	}

	composite := e.deps.Aggregator.Aggregate(symbol, signals)
	monitoring.UpdateSignalScore(symbol, composite.Score)

	snap := e.deps.Portfolio.Snapshot()
	proposal := e.deps.Selector.Select(composite, strategy.MarketContext{
		Quote:   quote,
		History: history,
		Chain:   chain,
	}, snap, now)
	if proposal == nil {
		return 0, 0, nil
	}

	if proposal.Close {
		trade, err := e.deps.Risk.ApproveClose(proposal, snap, e.marketView(snap, quotes, chains), now)
		if err != nil {
			e.log.Warning("%s: close not executable: %v", symbol, err)
			monitoring.RecordError(string(errors.KindOf(err)))
			return 0, 0, nil
		}
		if err := e.applyTrade(ctx, trade); err != nil {
			return 0, 0, err
		}
		return 1, 0, nil
	}

	trade, rejection := e.deps.Risk.Evaluate(proposal, snap, now)
	if rejection != nil {
		e.log.Info("❌ %s proposal rejected: %s", symbol, rejection.Error())
		monitoring.RecordRejection(string(rejection.Reason))
		return 0, 1, nil
	}
	if err := e.applyTrade(ctx, trade); err != nil {
		return 0, 0, err
	}
	return 1, 0, nil
}

func (e *Engine) skipSymbol(symbol, what string, err error) {
	e.log.Warning("%s: %s unavailable, symbol skipped this cycle: %v", symbol, what, err)
	monitoring.RecordError(string(errors.KindDataUnavailable))
}

// journalAppendRetries bounds the in-cycle retries for a failed journal
// write. Append is idempotent on record ID, so retrying is safe.
const journalAppendRetries = 3

// journalRecord persists one trade record and only then advances the
// last-journaled watermark the cycle snapshot is stamped with. A record
// that cannot be written leaves the durable log behind the portfolio, so
// persistent failure comes back as a state inconsistency and halts trading.
func (e *Engine) journalRecord(ctx context.Context, record *types.TradeRecord) error {
	var err error
	for attempt := 1; attempt <= journalAppendRetries; attempt++ {
		if err = e.deps.Journal.Append(ctx, record); err == nil {
			e.lastRecordID.Store(record.ID)
			return nil
		}
		e.log.Warning("Journal append failed for record %d (attempt %d/%d): %v",
			record.ID, attempt, journalAppendRetries, err)
	}
	return errors.NewStateInconsistency(
		fmt.Sprintf("record %d not journaled after %d attempts: %v", record.ID, journalAppendRetries, err))
}

// applyTrade commits one accepted trade: portfolio first, then the journal.
// Application is atomic on the portfolio side; a record the journal refuses
// to take after retries aborts the cycle rather than drift the log.
func (e *Engine) applyTrade(ctx context.Context, trade *types.AcceptedTrade) error {
	record, err := e.deps.Portfolio.Apply(trade)
	if err != nil {
		if errors.IsStateInconsistency(err) {
			return err
		}
		e.log.Error("Trade application failed for %s: %v", trade.Proposal.Symbol, err)
		monitoring.RecordError(string(errors.KindOf(err)))
		return nil
	}

	if err := e.journalRecord(ctx, record); err != nil {
		return err
	}
	e.log.LogTradeExecution(record)
	monitoring.RecordTrade(record.Symbol, string(record.Action))

	if e.deps.Notifier != nil {
		if err := e.deps.Notifier.NotifyTrade(record); err != nil {
			e.log.Warning("Trade notification failed: %v", err)
		}
	}
	return nil
}

// marketView builds the pricing view for exit evaluation from the data
// already fetched this cycle, fetching on demand for positions in symbols
// outside the cycle's universe.
func (e *Engine) marketView(snap *types.PortfolioSnapshot, quotes map[string]float64, chains map[string]*types.OptionChain) risk.MarketView {
	view := risk.MarketView{
		Prices:      make(map[string]float64),
		OptionMarks: make(map[types.PositionKey]float64),
	}

	for key, pos := range snap.Positions {
		if pos.Instrument.IsOptions() {
			chain, ok := chains[pos.Symbol]
			if !ok {
				fetched, err := e.deps.Options.Chain(pos.Symbol)
				if err != nil {
					e.log.Warning("%s: no chain for open structure, exit check skipped: %v", pos.Symbol, err)
					continue
				}
				chain = fetched
				chains[pos.Symbol] = chain
			}
			if chain == nil {
				continue
			}
			view.OptionMarks[key] = strategy.MarkStructure(pos.Legs, pos.Expiry, chain)
			continue
		}

		price, ok := quotes[pos.Symbol]
		if !ok {
			quote, err := e.deps.Data.Quote(pos.Symbol)
			if err != nil {
				e.log.Warning("%s: no price for open position, exit check skipped: %v", pos.Symbol, err)
				continue
			}
			price = quote.Price
			quotes[pos.Symbol] = price
		}
		view.Prices[pos.Symbol] = price
	}
	return view
}

// ManualProposal injects a proposal straight into the risk path, bypassing
// the selector. Used for manual trading; subject to the same risk budgets
// and the halt flag as automated flow.
func (e *Engine) ManualProposal(ctx context.Context, proposal *types.TradeProposal) (*types.TradeRecord, error) {
	if e.halted.Load() {
		return nil, errors.NewStateInconsistency("engine halted, manual trades suspended")
	}

	now := e.deps.Clock.Now()
	snap := e.deps.Portfolio.Snapshot()

	var trade *types.AcceptedTrade
	if proposal.Close {
		quotes := make(map[string]float64)
		chains := make(map[string]*types.OptionChain)
		approved, err := e.deps.Risk.ApproveClose(proposal, snap, e.marketView(snap, quotes, chains), now)
		if err != nil {
			return nil, err
		}
		trade = approved
	} else {
		accepted, rejection := e.deps.Risk.Evaluate(proposal, snap, now)
		if rejection != nil {
			return nil, rejection
		}
		trade = accepted
	}
	trade.Reason = "manual_override"

	record, err := e.deps.Portfolio.Apply(trade)
	if err != nil {
		if errors.IsStateInconsistency(err) {
			e.halt(err)
		}
		return nil, err
	}
	if err := e.journalRecord(ctx, record); err != nil {
		e.halt(err)
		return nil, err
	}
	e.log.LogTradeExecution(record)
	monitoring.RecordTrade(record.Symbol, string(record.Action))
	return record, nil
}

// halt suspends trade application after an invariant violation. The engine
// stays up for observability but refuses new trades until cleared.
func (e *Engine) halt(err error) {
	e.halted.Store(true)
	if e.deps.Health != nil {
		e.deps.Health.SetHalted(true)
		e.deps.Health.RecordError(err.Error())
	}
	monitoring.RecordError(string(errors.KindStateInconsistency))
	e.log.Error("🚨 HALTED: %v. Trade application suspended pending manual review", err)
}
