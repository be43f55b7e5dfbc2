package strategy

import (
	"github.com/BlockByBlockAI/stocktrading/internal/indicators"
	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// Regime classifies recent price action for instrument selection.
type Regime int

const (
	RegimeSideways Regime = iota // range-bound, low directional conviction
	RegimeTrending               // moving averages diverging
	RegimeVolatile               // wide true ranges relative to price
)

func (r Regime) String() string {
	switch r {
	case RegimeTrending:
		return "TRENDING"
	case RegimeVolatile:
		return "VOLATILE"
	default:
		return "SIDEWAYS"
	}
}

// RegimeConfig holds thresholds for regime detection.
type RegimeConfig struct {
	ATRPeriod           int     // lookback for average true range (default: 14)
	VolatilityThreshold float64 // ATR/price ratio above which the market is volatile (default: 0.04)
	TrendThreshold      float64 // |SMA20-SMA50|/SMA50 divergence marking a trend (default: 0.02)
}

// NewDefaultRegimeConfig creates default regime detection thresholds.
func NewDefaultRegimeConfig() *RegimeConfig {
	return &RegimeConfig{
		ATRPeriod:           14,
		VolatilityThreshold: 0.04,
		TrendThreshold:      0.02,
	}
}

// RegimeDetector classifies market conditions from OHLCV history.
type RegimeDetector struct {
	config *RegimeConfig
}

func NewRegimeDetector(config *RegimeConfig) *RegimeDetector {
	if config == nil {
		config = NewDefaultRegimeConfig()
	}
	return &RegimeDetector{config: config}
}

// DetectRegime classifies the market from OHLCV history. Volatility wins
// over trend: a wildly swinging market is volatile even when the averages
// have diverged. Insufficient history defaults to sideways.
func (d *RegimeDetector) DetectRegime(data []types.OHLCV) Regime {
	if len(data) < 50 {
		return RegimeSideways
	}

	last := data[len(data)-1].Close
	if last <= 0 {
		return RegimeSideways
	}

	atr := averageTrueRange(data, d.config.ATRPeriod)
	if atr/last > d.config.VolatilityThreshold {
		return RegimeVolatile
	}

	closes := indicators.Closes(data)
	sma20, err20 := indicators.SMA(closes, 20)
	sma50, err50 := indicators.SMA(closes, 50)
	if err20 != nil || err50 != nil || sma50 == 0 {
		return RegimeSideways
	}

	divergence := sma20 - sma50
	if divergence < 0 {
		divergence = -divergence
	}
	if divergence/sma50 > d.config.TrendThreshold {
		return RegimeTrending
	}

	return RegimeSideways
}

// averageTrueRange computes a simple-average ATR over the trailing period.
func averageTrueRange(data []types.OHLCV, period int) float64 {
	if period <= 0 || len(data) < period+1 {
		return 0
	}

	sum := 0.0
	for i := len(data) - period; i < len(data); i++ {
		high := data[i].High
		low := data[i].Low
		prevClose := data[i-1].Close

		tr := high - low
		if hc := abs(high - prevClose); hc > tr {
			tr = hc
		}
		if lc := abs(low - prevClose); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
