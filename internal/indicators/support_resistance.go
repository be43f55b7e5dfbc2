package indicators

import "github.com/BlockByBlockAI/stocktrading/pkg/types"

// SupportResistance returns the rolling low and high of the trailing
// window: the low acts as support, the high as resistance.
func SupportResistance(data []types.OHLCV, window int) (support, resistance float64, err error) {
	if len(data) < window {
		return 0, 0, ErrInsufficientData
	}

	tail := data[len(data)-window:]
	support = tail[0].Low
	resistance = tail[0].High
	for _, bar := range tail[1:] {
		if bar.Low < support {
			support = bar.Low
		}
		if bar.High > resistance {
			resistance = bar.High
		}
	}
	return support, resistance, nil
}

// Closes extracts the close-price series from OHLCV bars.
func Closes(data []types.OHLCV) []float64 {
	closes := make([]float64, len(data))
	for i, bar := range data {
		closes[i] = bar.Close
	}
	return closes
}
