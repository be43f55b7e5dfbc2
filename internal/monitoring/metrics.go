package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Engine metrics
	cyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trading_engine_cycles_total",
			Help: "Total number of completed trading cycles",
		},
	)

	ticksSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_engine_ticks_skipped_total",
			Help: "Scheduler ticks that did not run a cycle",
		},
		[]string{"reason"},
	)

	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_engine_trades_total",
			Help: "Total number of executed trades",
		},
		[]string{"symbol", "action"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_engine_rejections_total",
			Help: "Trade proposals declined by the risk manager",
		},
		[]string{"reason"},
	)

	// Portfolio metrics
	portfolioEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_engine_portfolio_equity",
			Help: "Current portfolio book value",
		},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_engine_open_positions",
			Help: "Number of open positions",
		},
	)

	signalScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trading_engine_signal_score",
			Help: "Latest aggregated signal score per symbol",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_engine_errors_total",
			Help: "Total number of errors by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(ticksSkipped)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(portfolioEquity)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(signalScore)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus scrape endpoint.
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordCycle counts a completed trading cycle.
func RecordCycle() {
	cyclesTotal.Inc()
}

// RecordSkippedTick counts a scheduler tick that ran no cycle.
func RecordSkippedTick(reason string) {
	ticksSkipped.WithLabelValues(reason).Inc()
}

// RecordTrade counts an executed trade.
func RecordTrade(symbol, action string) {
	tradesTotal.WithLabelValues(symbol, action).Inc()
}

// RecordRejection counts a risk manager rejection.
func RecordRejection(reason string) {
	rejectionsTotal.WithLabelValues(reason).Inc()
}

// UpdatePortfolio updates the portfolio gauges.
func UpdatePortfolio(equity float64, positions int) {
	portfolioEquity.Set(equity)
	openPositions.Set(float64(positions))
}

// UpdateSignalScore updates the last aggregated score for a symbol.
func UpdateSignalScore(symbol string, score float64) {
	signalScore.WithLabelValues(symbol).Set(score)
}

// RecordError counts an error by taxonomy kind.
func RecordError(kind string) {
	errorsTotal.WithLabelValues(kind).Inc()
}
