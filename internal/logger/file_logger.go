package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// Logger represents a file logger for one trading session
type Logger struct {
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	logPath string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

// NewLogger creates a file logger under logDir, one file per session day
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logDir, fmt.Sprintf("engine_%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		logFile: file,
		logger:  log.New(file, "", 0),
		logPath: logPath,
	}

	l.writeSessionHeader()

	return l, nil
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
🚀 TRADING SESSION STARTED
================================================================================
Started: %s
Log File: %s
================================================================================
`, time.Now().Format("2006-01-02 15:04:05"), l.logPath)

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Println(fmt.Sprintf("[%s] [%s] %s", timestamp, level, message))
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs market status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogTradeExecution logs one executed trade with its rationale
func (l *Logger) LogTradeExecution(rec *types.TradeRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	tradeLog := fmt.Sprintf(`
[%s] [TRADE] ==================== %s %s ====================
✅ Record ID: %d
📦 Instrument: %s (%s) | Direction: %s
🔢 Quantity: %d
💰 Price: $%.2f | Cost Basis: $%.2f
💹 P&L: $%.2f
🧠 Reason: %s | Score: %.2f | Confidence: %.2f
=============================================================`,
		timestamp, rec.Symbol, rec.Action, rec.ID, rec.Instrument, rec.Slot,
		rec.Direction, rec.Quantity, rec.Price, rec.CostBasis, rec.PnL,
		rec.Reason, rec.Score, rec.Confidence)

	l.logger.Println(tradeLog)
}

// LogCycleSummary logs the portfolio state after a completed cycle
func (l *Logger) LogCycleSummary(snap *types.PortfolioSnapshot, trades, rejections int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	summary := fmt.Sprintf(`
[%s] [STATUS] ==================== CYCLE COMPLETED ====================
💼 Cash: $%.2f | Book Value: $%.2f
💹 Realized P&L: $%.2f | Risk In Use: $%.2f
📊 Open Positions: %d | Trades: %d | Rejections: %d
==============================================================`,
		timestamp, snap.Cash, snap.Value(), snap.RealizedPnL, snap.RiskInUse,
		len(snap.Positions), trades, rejections)

	l.logger.Println(summary)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// LogWarning logs warning with context
func (l *Logger) LogWarning(context string, message string, args ...interface{}) {
	fullMessage := fmt.Sprintf(context+": "+message, args...)
	l.Warning("%s", fullMessage)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		timestamp := time.Now().Format("2006-01-02 15:04:05")
		footer := fmt.Sprintf(`
================================================================================
🛑 TRADING SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, timestamp)
		l.logger.Print(footer)

		return l.logFile.Close()
	}
	return nil
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	return l.logPath
}
