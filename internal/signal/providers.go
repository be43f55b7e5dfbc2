package signal

import (
	"fmt"
	"time"

	"github.com/BlockByBlockAI/stocktrading/internal/indicators"
	"github.com/BlockByBlockAI/stocktrading/internal/market"
	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// Provider produces one normalized signal per symbol per cycle. Collect
// must be idempotent for a given (symbol, now) so cycles can be replayed.
// A provider that cannot see its data returns an error; the engine treats
// that as data-unavailable and carries on without it.
type Provider interface {
	Source() types.SignalSource
	Collect(symbol string, now time.Time) (types.Signal, error)
}

const minHistoryBars = 50

// TechnicalProvider scores a symbol from RSI, moving-average trend, and
// proximity to rolling support/resistance.
type TechnicalProvider struct {
	data market.DataProvider
	bars int
}

func NewTechnicalProvider(data market.DataProvider, bars int) *TechnicalProvider {
	if bars < minHistoryBars {
		bars = minHistoryBars
	}
	return &TechnicalProvider{data: data, bars: bars}
}

func (p *TechnicalProvider) Source() types.SignalSource { return types.SourceTechnical }

func (p *TechnicalProvider) Collect(symbol string, now time.Time) (types.Signal, error) {
	history, err := p.data.HistoricalData(symbol, p.bars)
	if err != nil {
		return types.Signal{}, fmt.Errorf("technical data for %s: %w", symbol, err)
	}
	if len(history) < minHistoryBars {
		return types.Signal{}, fmt.Errorf("technical data for %s: got %d bars, need %d",
			symbol, len(history), minHistoryBars)
	}

	closes := indicators.Closes(history)
	price := closes[len(closes)-1]

	rsi, err := indicators.RSI(closes, 14)
	if err != nil {
		return types.Signal{}, fmt.Errorf("rsi for %s: %w", symbol, err)
	}
	sma20, err := indicators.SMA(closes, 20)
	if err != nil {
		return types.Signal{}, fmt.Errorf("sma20 for %s: %w", symbol, err)
	}
	sma50, err := indicators.SMA(closes, 50)
	if err != nil {
		return types.Signal{}, fmt.Errorf("sma50 for %s: %w", symbol, err)
	}
	support, resistance, err := indicators.SupportResistance(history, 20)
	if err != nil {
		return types.Signal{}, fmt.Errorf("support/resistance for %s: %w", symbol, err)
	}

	score := 0.0
	switch {
	case rsi < 30:
		score += 0.4 // oversold
	case rsi < 40:
		score += 0.2
	case rsi > 70:
		score -= 0.4 // overbought
	case rsi > 60:
		score -= 0.2
	}
	if sma20 > sma50 {
		score += 0.3
	} else {
		score -= 0.3
	}
	if price <= support*1.02 {
		score += 0.3
	}
	if price >= resistance*0.98 {
		score -= 0.3
	}

	confidence := 0.6
	if len(history) >= p.bars {
		confidence = 0.9
	}

	return types.Signal{
		Source:     types.SourceTechnical,
		Symbol:     symbol,
		Value:      clamp(score, -1, 1),
		Confidence: confidence,
		Timestamp:  now,
	}, nil
}

// OptionsFlowProvider scores a symbol from the direction and strength of
// money flow across its options chain.
type OptionsFlowProvider struct {
	options market.OptionsProvider
}

func NewOptionsFlowProvider(options market.OptionsProvider) *OptionsFlowProvider {
	return &OptionsFlowProvider{options: options}
}

func (p *OptionsFlowProvider) Source() types.SignalSource { return types.SourceOptionsFlow }

func (p *OptionsFlowProvider) Collect(symbol string, now time.Time) (types.Signal, error) {
	chain, err := p.options.Chain(symbol)
	if err != nil {
		return types.Signal{}, fmt.Errorf("options chain for %s: %w", symbol, err)
	}
	if chain == nil || len(chain.Contracts) == 0 {
		return types.Signal{}, fmt.Errorf("options chain for %s is empty", symbol)
	}

	stats := market.ComputeChainStats(chain)

	confidence := 0.3
	if stats.HighActivity() {
		confidence = 0.6
		if stats.StrongFlow() {
			confidence = 0.8
		}
	}

	return types.Signal{
		Source:     types.SourceOptionsFlow,
		Symbol:     symbol,
		Value:      clamp(stats.MoneyFlowRatio, -1, 1),
		Confidence: confidence,
		Timestamp:  now,
	}, nil
}

// AnalystProvider maps the analyst consensus rating (1 strong buy .. 5
// strong sell) onto the normalized score range.
type AnalystProvider struct {
	ratings market.RatingsProvider
}

func NewAnalystProvider(ratings market.RatingsProvider) *AnalystProvider {
	return &AnalystProvider{ratings: ratings}
}

func (p *AnalystProvider) Source() types.SignalSource { return types.SourceAnalyst }

func (p *AnalystProvider) Collect(symbol string, now time.Time) (types.Signal, error) {
	r, err := p.ratings.Ratings(symbol)
	if err != nil {
		return types.Signal{}, fmt.Errorf("analyst ratings for %s: %w", symbol, err)
	}

	// Rating 3 is hold; each full step away is worth half the range.
	value := clamp((3-r.MeanRating)/2, -1, 1)

	confidence := 0.5 + float64(r.Analysts)*0.02
	if confidence > 0.8 {
		confidence = 0.8
	}

	return types.Signal{
		Source:     types.SourceAnalyst,
		Symbol:     symbol,
		Value:      value,
		Confidence: confidence,
		Timestamp:  now,
	}, nil
}
