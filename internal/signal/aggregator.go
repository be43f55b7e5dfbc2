package signal

import (
	"time"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// DefaultSourceWeights orders the sources by importance: technical
// indicators over options flow over analyst consensus.
var DefaultSourceWeights = map[types.SignalSource]float64{
	types.SourceTechnical:   1.0,
	types.SourceOptionsFlow: 0.8,
	types.SourceAnalyst:     0.6,
}

// Aggregator combines heterogeneous signals into one composite score and
// directional bias per symbol. It is a pure function of its inputs, which
// keeps cycles replayable.
type Aggregator struct {
	coefficients map[types.SignalSource]float64
	minSources   int
}

// NewAggregator builds an aggregator with the given source-importance
// coefficients (nil selects the defaults) and the minimum number of
// reporting sources below which confidence is downgraded.
func NewAggregator(coefficients map[types.SignalSource]float64, minSources int) *Aggregator {
	if coefficients == nil {
		coefficients = DefaultSourceWeights
	}
	if minSources < 1 {
		minSources = 1
	}
	return &Aggregator{coefficients: coefficients, minSources: minSources}
}

// Aggregate produces the composite signal for a symbol. The weight of each
// signal is its own confidence times the source-importance coefficient.
// No signals is a valid, common case and yields a neutral composite with
// confidence zero rather than an error. An exact zero score is neutral.
func (a *Aggregator) Aggregate(symbol string, signals []types.Signal) types.CompositeSignal {
	composite := types.CompositeSignal{
		Symbol:    symbol,
		Bias:      types.BiasNeutral,
		Breakdown: make(map[types.SignalSource]float64, len(signals)),
	}
	if len(signals) == 0 {
		return composite
	}

	var weightedSum, totalWeight, coeffSum float64
	var latest time.Time
	for _, s := range signals {
		coeff := a.coefficients[s.Source]
		if coeff <= 0 {
			continue
		}
		weight := clamp01(s.Confidence) * coeff
		weightedSum += clamp(s.Value, -1, 1) * weight
		totalWeight += weight
		coeffSum += coeff
		composite.Breakdown[s.Source] = s.Value
		composite.Sources++
		if s.Timestamp.After(latest) {
			latest = s.Timestamp
		}
	}
	composite.Timestamp = latest

	if totalWeight == 0 {
		return composite
	}

	composite.Score = weightedSum / totalWeight
	composite.Confidence = totalWeight / coeffSum

	if composite.Sources < a.minSources {
		composite.Confidence *= 0.5
		if composite.Confidence < 0.25 {
			// Too little corroboration to act on at all.
			composite.Bias = types.BiasNeutral
			return composite
		}
	}

	switch {
	case composite.Score > 0:
		composite.Bias = types.BiasLong
	case composite.Score < 0:
		composite.Bias = types.BiasShort
	default:
		composite.Bias = types.BiasNeutral
	}
	return composite
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }
