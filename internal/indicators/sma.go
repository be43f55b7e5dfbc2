package indicators

// SMA computes the simple moving average of the trailing window.
func SMA(prices []float64, window int) (float64, error) {
	if len(prices) < window {
		return 0, ErrInsufficientData
	}
	return mean(prices[len(prices)-window:]), nil
}
