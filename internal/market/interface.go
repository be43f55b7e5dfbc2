package market

import (
	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// DataProvider supplies price history and current quotes. Implementations
// must be idempotent per (symbol, timestamp) so cycles can be replayed.
type DataProvider interface {
	HistoricalData(symbol string, bars int) ([]types.OHLCV, error)
	Quote(symbol string) (types.Quote, error)
}

// OptionsProvider supplies options-chain snapshots for the Strategy
// Selector's volatility-regime classification and structure pricing.
type OptionsProvider interface {
	Chain(symbol string) (*types.OptionChain, error)
}

// Ratings is the analyst consensus for a symbol. MeanRating uses the
// conventional 1 (strong buy) to 5 (strong sell) scale.
type Ratings struct {
	Recommendation string
	MeanRating     float64
	TargetPrice    float64
	Analysts       int
}

func (r Ratings) Bullish() bool {
	return r.Recommendation == "BUY" || r.Recommendation == "STRONG_BUY"
}

func (r Ratings) Bearish() bool {
	return r.Recommendation == "SELL" || r.Recommendation == "STRONG_SELL"
}

// RatingsProvider supplies analyst consensus data.
type RatingsProvider interface {
	Ratings(symbol string) (Ratings, error)
}
