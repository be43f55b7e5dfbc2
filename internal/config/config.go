package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// Config holds every tunable of the paper-trading engine. Values come from
// the environment with sane defaults; the trading universe and sector map
// can additionally be loaded from a JSON file.
type Config struct {
	Environment string
	LogLevel    string

	Portfolio struct {
		InitialCapital float64
		JournalPath    string
	}

	Risk struct {
		RiskPerTrade      float64 // fraction of portfolio value risked per trade
		MaxPortfolioRisk  float64 // ceiling on summed capital at risk
		MaxSymbolExposure float64 // per-symbol concentration cap
		MaxSectorExposure float64 // per-sector concentration cap
		MaxLossPct        float64 // backstop close when a position loses this much of basis
		LotSize           int
	}

	Signals struct {
		EntryThreshold float64
		ExitThreshold  float64
		MinSources     int
		SourceWeights  map[types.SignalSource]float64
	}

	Strategy struct {
		StrikeWidthPct  float64 // strike search band around spot
		MinExpiryDays   int
		MaxExpiryDays   int
		HighConfidence  float64 // confidence band edge for equity vs spread
		StopLossPct     float64 // equity stop distance from entry
		TakeProfitPct   float64 // equity take-profit distance from entry
		OptionStopFrac  float64 // close options at this fraction of max loss
		OptionTakeFrac  float64 // take profit at this fraction of max profit
		HistoryBars     int
	}

	Engine struct {
		Interval       time.Duration
		Timezone       string
		SimulationMode bool // ignore market hours, trade every tick
	}

	Universe []string
	Sectors  map[string]string
	Ratings  map[string]AnalystRating

	Monitoring struct {
		PrometheusPort int
		HealthPort     int
	}

	Notifications struct {
		TelegramToken  string
		TelegramChatID string
	}
}

// Load builds the configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	cfg.Portfolio.InitialCapital = getEnvFloat("INITIAL_CAPITAL", 100000.0)
	cfg.Portfolio.JournalPath = getEnv("JOURNAL_PATH", "data/trades.db")

	cfg.Risk.RiskPerTrade = getEnvFloat("RISK_PER_TRADE", 0.02)
	cfg.Risk.MaxPortfolioRisk = getEnvFloat("MAX_PORTFOLIO_RISK", 0.10)
	cfg.Risk.MaxSymbolExposure = getEnvFloat("MAX_SYMBOL_EXPOSURE", 0.20)
	cfg.Risk.MaxSectorExposure = getEnvFloat("MAX_SECTOR_EXPOSURE", 0.40)
	cfg.Risk.MaxLossPct = getEnvFloat("MAX_LOSS_PCT", 0.20)
	cfg.Risk.LotSize = getEnvInt("LOT_SIZE", 1)

	cfg.Signals.EntryThreshold = getEnvFloat("ENTRY_THRESHOLD", 0.30)
	cfg.Signals.ExitThreshold = getEnvFloat("EXIT_THRESHOLD", 0.15)
	cfg.Signals.MinSources = getEnvInt("MIN_SIGNAL_SOURCES", 2)
	cfg.Signals.SourceWeights = map[types.SignalSource]float64{
		types.SourceTechnical:   getEnvFloat("WEIGHT_TECHNICAL", 1.0),
		types.SourceOptionsFlow: getEnvFloat("WEIGHT_OPTIONS_FLOW", 0.8),
		types.SourceAnalyst:     getEnvFloat("WEIGHT_ANALYST", 0.6),
	}

	cfg.Strategy.StrikeWidthPct = getEnvFloat("STRIKE_WIDTH_PCT", 0.05)
	cfg.Strategy.MinExpiryDays = getEnvInt("MIN_EXPIRY_DAYS", 30)
	cfg.Strategy.MaxExpiryDays = getEnvInt("MAX_EXPIRY_DAYS", 60)
	cfg.Strategy.HighConfidence = getEnvFloat("HIGH_CONFIDENCE", 0.70)
	cfg.Strategy.StopLossPct = getEnvFloat("STOP_LOSS_PCT", 0.05)
	cfg.Strategy.TakeProfitPct = getEnvFloat("TAKE_PROFIT_PCT", 0.15)
	cfg.Strategy.OptionStopFrac = getEnvFloat("OPTION_STOP_FRAC", 0.80)
	cfg.Strategy.OptionTakeFrac = getEnvFloat("OPTION_TAKE_FRAC", 0.50)
	cfg.Strategy.HistoryBars = getEnvInt("HISTORY_BARS", 100)

	cfg.Engine.Interval = getEnvDuration("TRADING_INTERVAL", 5*time.Minute)
	cfg.Engine.Timezone = getEnv("MARKET_TIMEZONE", "America/New_York")
	cfg.Engine.SimulationMode = getEnvBool("SIMULATION_MODE", false)

	cfg.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", 8080)
	cfg.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", 8081)

	cfg.Notifications.TelegramToken = getEnv("TELEGRAM_TOKEN", "")
	cfg.Notifications.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")

	cfg.Sectors = map[string]string{}
	cfg.Ratings = map[string]AnalystRating{}
	return cfg
}

// AnalystRating is one symbol's consensus entry in the universe file. It
// feeds the analyst signal source, on the 1 (strong buy) to 5 (strong
// sell) scale.
type AnalystRating struct {
	Recommendation string  `json:"recommendation"`
	MeanRating     float64 `json:"mean_rating"`
	TargetPrice    float64 `json:"target_price"`
	Analysts       int     `json:"analysts"`
}

// universeFile is the JSON shape of a universe config file.
type universeFile struct {
	Symbols []string                 `json:"symbols"`
	Sectors map[string]string        `json:"sectors"`
	Ratings map[string]AnalystRating `json:"ratings"`
}

// LoadUniverse reads the trading universe, sector map and analyst
// consensus table from a JSON file, replacing whatever was configured
// before.
func (c *Config) LoadUniverse(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read universe file: %w", err)
	}

	var uf universeFile
	if err := json.Unmarshal(data, &uf); err != nil {
		return fmt.Errorf("could not parse universe file: %w", err)
	}
	if len(uf.Symbols) == 0 {
		return fmt.Errorf("universe file %s lists no symbols", path)
	}

	c.Universe = uf.Symbols
	if uf.Sectors != nil {
		c.Sectors = uf.Sectors
	}
	if uf.Ratings != nil {
		c.Ratings = uf.Ratings
	}
	return nil
}

// Validate rejects configurations the risk model cannot operate under.
func (c *Config) Validate() error {
	if c.Portfolio.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %.2f", c.Portfolio.InitialCapital)
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade >= 1 {
		return fmt.Errorf("risk per trade must be in (0, 1), got %.4f", c.Risk.RiskPerTrade)
	}
	if c.Risk.MaxPortfolioRisk < c.Risk.RiskPerTrade {
		return fmt.Errorf("portfolio risk ceiling %.4f is below risk per trade %.4f",
			c.Risk.MaxPortfolioRisk, c.Risk.RiskPerTrade)
	}
	if c.Signals.ExitThreshold >= c.Signals.EntryThreshold {
		return fmt.Errorf("exit threshold %.2f must be below entry threshold %.2f",
			c.Signals.ExitThreshold, c.Signals.EntryThreshold)
	}
	if len(c.Universe) == 0 {
		return fmt.Errorf("trading universe is empty")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
