package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BlockByBlockAI/stocktrading/internal/config"
	"github.com/BlockByBlockAI/stocktrading/internal/engine"
	"github.com/BlockByBlockAI/stocktrading/internal/journal"
	"github.com/BlockByBlockAI/stocktrading/internal/logger"
	"github.com/BlockByBlockAI/stocktrading/internal/market"
	"github.com/BlockByBlockAI/stocktrading/internal/monitoring"
	"github.com/BlockByBlockAI/stocktrading/internal/notifications"
	"github.com/BlockByBlockAI/stocktrading/internal/portfolio"
	"github.com/BlockByBlockAI/stocktrading/internal/risk"
	sig "github.com/BlockByBlockAI/stocktrading/internal/signal"
	"github.com/BlockByBlockAI/stocktrading/internal/strategy"
	"github.com/BlockByBlockAI/stocktrading/pkg/reporting"
)

func main() {
	var (
		envFile      = flag.String("env", ".env", "Path to environment file")
		universeFile = flag.String("universe", "configs/universe.json", "Path to trading universe JSON file")
		simulate     = flag.Bool("simulate", false, "Ignore market hours and trade continuously")
		exportPath   = flag.String("export", "", "Write trade history to this .xlsx file on shutdown")
	)
	flag.Parse()

	loadEnvFile(*envFile)

	fmt.Println("🚀 Paper Trading Engine Starting...")

	cfg := config.Load()
	if err := cfg.LoadUniverse(*universeFile); err != nil {
		log.Fatalf("❌ Failed to load universe: %v", err)
	}
	if *simulate {
		cfg.Engine.SimulationMode = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	sessionLog, err := logger.NewLogger("logs")
	if err != nil {
		log.Fatalf("❌ Failed to create session logger: %v", err)
	}
	defer sessionLog.Close()
	fmt.Printf("📝 Session log: %s\n", sessionLog.GetLogPath())

	// Market data: Yahoo Finance for quotes, history and options chains.
	// Analyst consensus comes from the universe file's ratings table.
	yahoo := market.NewYahooProvider()
	ratings := market.NewStaticRatingsProvider(ratingsTable(cfg))

	providers := []engine.SignalProvider{
		sig.NewTechnicalProvider(yahoo, cfg.Strategy.HistoryBars),
		sig.NewOptionsFlowProvider(yahoo),
		sig.NewAnalystProvider(ratings),
	}
	aggregator := sig.NewAggregator(cfg.Signals.SourceWeights, cfg.Signals.MinSources)

	selector := strategy.NewSelector(
		strategy.SelectorConfig{
			EntryThreshold: cfg.Signals.EntryThreshold,
			ExitThreshold:  cfg.Signals.ExitThreshold,
			HighConfidence: cfg.Strategy.HighConfidence,
			StopLossPct:    cfg.Strategy.StopLossPct,
			TakeProfitPct:  cfg.Strategy.TakeProfitPct,
			OptionStopFrac: cfg.Strategy.OptionStopFrac,
			OptionTakeFrac: cfg.Strategy.OptionTakeFrac,
		},
		strategy.NewRegimeDetector(nil),
		strategy.NewStructureBuilder(strategy.StructureConfig{
			StrikeWidthPct: cfg.Strategy.StrikeWidthPct,
			MinExpiryDays:  cfg.Strategy.MinExpiryDays,
			MaxExpiryDays:  cfg.Strategy.MaxExpiryDays,
		}),
	)

	riskManager := risk.NewManager(risk.Config{
		RiskPerTrade:      cfg.Risk.RiskPerTrade,
		MaxPortfolioRisk:  cfg.Risk.MaxPortfolioRisk,
		MaxSymbolExposure: cfg.Risk.MaxSymbolExposure,
		MaxSectorExposure: cfg.Risk.MaxSectorExposure,
		MaxLossPct:        cfg.Risk.MaxLossPct,
		LotSize:           cfg.Risk.LotSize,
		Sectors:           cfg.Sectors,
	})

	store, err := journal.Open(cfg.Portfolio.JournalPath)
	if err != nil {
		log.Fatalf("❌ Failed to open trade journal: %v", err)
	}
	defer store.Close()

	book := portfolio.NewManager(cfg.Portfolio.InitialCapital)
	if err := recoverPortfolio(book, store); err != nil {
		log.Fatalf("❌ Failed to recover portfolio from journal: %v", err)
	}

	var calendar engine.Calendar
	if cfg.Engine.SimulationMode {
		fmt.Println("⚠️  Simulation mode: market hours ignored")
		calendar = engine.AlwaysOpenCalendar{}
	} else {
		calendar, err = engine.NewUSEquityCalendar(cfg.Engine.Timezone)
		if err != nil {
			log.Fatalf("❌ Invalid market timezone %q: %v", cfg.Engine.Timezone, err)
		}
	}

	var notifier engine.Notifier
	if cfg.Notifications.TelegramToken != "" && cfg.Notifications.TelegramChatID != "" {
		notifier = notifications.NewTelegramNotifier(
			cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID)
		fmt.Println("📱 Telegram notifications enabled")
	}

	health := monitoring.NewHealthChecker()

	eng := engine.New(
		engine.Config{
			Universe:    cfg.Universe,
			HistoryBars: cfg.Strategy.HistoryBars,
			Interval:    cfg.Engine.Interval,
		},
		engine.Deps{
			Data:       yahoo,
			Options:    yahoo,
			Providers:  providers,
			Aggregator: aggregator,
			Selector:   selector,
			Risk:       riskManager,
			Portfolio:  book,
			Journal:    store,
			Notifier:   notifier,
			Log:        sessionLog,
			Health:     health,
			Calendar:   calendar,
		},
	)

	startMonitoringServers(cfg, health)

	reporter := reporting.NewConsoleReporter()
	reporter.PrintStartupInfo(cfg.Universe, cfg.Portfolio.InitialCapital,
		cfg.Engine.Interval, cfg.Engine.Timezone)

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)
	go periodicStatus(ctx, reporter, book, cfg.Engine.Interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n🛑 Shutdown signal received, stopping engine...")
	cancel()
	time.Sleep(500 * time.Millisecond)

	printFinalReport(reporter, book, store, cfg.Portfolio.InitialCapital, *exportPath)
	fmt.Println("👋 Goodbye!")
}

// loadEnvFile pulls environment variables from a dotenv file if present.
func loadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil {
		fmt.Printf("⚠️  Warning: Could not load env file %s: %v\n", path, err)
		fmt.Println("📝 Using environment variables and defaults")
	}
}

// ratingsTable converts the configured analyst consensus entries into the
// provider's table form.
func ratingsTable(cfg *config.Config) map[string]market.Ratings {
	table := make(map[string]market.Ratings, len(cfg.Ratings))
	for symbol, r := range cfg.Ratings {
		table[symbol] = market.Ratings{
			Recommendation: r.Recommendation,
			MeanRating:     r.MeanRating,
			TargetPrice:    r.TargetPrice,
			Analysts:       r.Analysts,
		}
	}
	return table
}

// recoverPortfolio rebuilds portfolio state from the journal: restore the
// latest snapshot, then replay any records written after it was taken.
func recoverPortfolio(book *portfolio.Manager, store *journal.Store) error {
	ctx := context.Background()

	snap, lastID, err := store.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	if snap != nil {
		if err := book.RestoreSnapshot(snap, lastID); err != nil {
			return err
		}
		fmt.Printf("🔄 Restored portfolio snapshot: cash $%.2f, %d open positions\n",
			snap.Cash, len(snap.Positions))
	}

	tail, err := store.RecordsAfter(ctx, lastID)
	if err != nil {
		return err
	}
	if len(tail) > 0 {
		if err := book.Restore(tail); err != nil {
			return err
		}
		fmt.Printf("🔄 Replayed %d journal records past the snapshot\n", len(tail))
	}
	return nil
}

// periodicStatus prints the portfolio table every few cycles so a terminal
// session shows live state without waiting for shutdown.
func periodicStatus(ctx context.Context, reporter *reporting.ConsoleReporter,
	book *portfolio.Manager, interval time.Duration) {

	ticker := time.NewTicker(6 * interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reporter.PrintPortfolioStatus(book.Snapshot())
		}
	}
}

// startMonitoringServers exposes Prometheus metrics and the health probe.
func startMonitoringServers(cfg *config.Config, health *monitoring.HealthChecker) {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.NewMetricsHandler())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
		if err := http.ListenAndServe(addr, metricsMux); err != nil {
			fmt.Printf("⚠️  Metrics server stopped: %v\n", err)
		}
	}()
	fmt.Printf("📊 Prometheus metrics on :%d/metrics\n", cfg.Monitoring.PrometheusPort)

	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.HealthPort)
		if err := http.ListenAndServe(addr, healthMux); err != nil {
			fmt.Printf("⚠️  Health server stopped: %v\n", err)
		}
	}()
	fmt.Printf("❤️  Health probe on :%d/health\n", cfg.Monitoring.HealthPort)
}

// printFinalReport shows the closing portfolio state and performance, and
// optionally exports the trade history to Excel.
func printFinalReport(reporter *reporting.ConsoleReporter, book *portfolio.Manager,
	store *journal.Store, initialCapital float64, exportPath string) {

	snap := book.Snapshot()
	reporter.PrintPortfolioStatus(snap)

	records, err := store.Records(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		fmt.Printf("⚠️  Could not read trade history: %v\n", err)
		return
	}
	reporter.PrintTradeHistory(records)

	metrics := portfolio.ComputeMetrics(initialCapital, records)
	reporter.PrintPerformance(metrics.WinRate, metrics.TotalProfit,
		metrics.AvgProfit, metrics.MaxDrawdown, metrics.TotalTrades)

	if exportPath != "" {
		if err := reporting.NewExcelReporter().WriteTradesXLSX(records, exportPath); err != nil {
			fmt.Printf("⚠️  Excel export failed: %v\n", err)
		} else {
			fmt.Printf("📄 Trade history exported to %s\n", exportPath)
		}
	}
}
