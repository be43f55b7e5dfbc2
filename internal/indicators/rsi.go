package indicators

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when a series is too short for the
// requested period.
var ErrInsufficientData = errors.New("insufficient data for indicator calculation")

// RSI computes the Relative Strength Index over the trailing period using
// rolling-mean gains and losses.
func RSI(prices []float64, period int) (float64, error) {
	if len(prices) < period+1 {
		return 0, ErrInsufficientData
	}

	gains := make([]float64, 0, period)
	losses := make([]float64, 0, period)
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, math.Abs(change))
		}
	}

	avgGain := mean(gains)
	avgLoss := mean(losses)
	if avgLoss == 0 {
		return 100, nil
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
