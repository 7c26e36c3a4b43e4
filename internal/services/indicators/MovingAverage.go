package indicators

import (
	"fmt"

	"TradeEngine/internal/models"
)

// EMA calculates an exponential moving average over the full price list,
// oldest to newest, seeded with a simple average of the first length
// prices.
func EMA(prices []float64, length int) (float64, error) {
	if length <= 0 {
		return 0, fmt.Errorf("invalid EMA length %d", length)
	}
	if len(prices) < length {
		return 0, fmt.Errorf("not enough prices to calculate %d-period EMA (have %d)", length, len(prices))
	}

	k := 2.0 / float64(length+1)
	ema := 0.0
	for _, p := range prices[:length] {
		ema += p
	}
	ema /= float64(length)

	for _, p := range prices[length:] {
		ema = p*k + ema*(1-k)
	}
	return ema, nil
}

// SMA calculates a simple moving average of the last length prices.
func SMA(prices []float64, length int) (float64, error) {
	if length <= 0 {
		return 0, fmt.Errorf("invalid SMA length %d", length)
	}
	if len(prices) < length {
		return 0, fmt.Errorf("not enough prices to calculate %d-period SMA (have %d)", length, len(prices))
	}

	sum := 0.0
	for _, p := range prices[len(prices)-length:] {
		sum += p
	}
	return sum / float64(length), nil
}

// MovingAverage resolves a custom MA configuration (type + length) to a
// value, defaulting to SMA when the type is unknown or empty.
func MovingAverage(prices []float64, cfg models.MAConfig) (float64, error) {
	length := cfg.Length
	if length <= 0 {
		length = 20
	}
	switch cfg.Type {
	case models.IndicatorEMA:
		return EMA(prices, length)
	default:
		return SMA(prices, length)
	}
}
