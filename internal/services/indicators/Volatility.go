package indicators

import (
	"math"

	"TradeEngine/internal/models"
)

// ADR calculates Average Daily Range as a percentage of close over the
// last lookback bars. Returns ok=false when there is not enough data.
func ADR(bars []models.Bar, lookback int) (float64, bool) {
	if lookback <= 0 {
		lookback = 20
	}
	if len(bars) < lookback {
		return 0, false
	}

	recent := bars[len(bars)-lookback:]
	sum := 0.0
	for _, b := range recent {
		if b.Close == 0 {
			return 0, false
		}
		sum += (b.High - b.Low) / b.Close
	}
	return round2(sum / float64(lookback) * 100), true
}

// ATR calculates Average True Range as a percentage of close over the
// last lookback bars. Needs lookback+1 bars for the previous-close term.
func ATR(bars []models.Bar, lookback int) (float64, bool) {
	if lookback <= 0 {
		lookback = 14
	}
	if len(bars) < lookback+1 {
		return 0, false
	}

	sum := 0.0
	start := len(bars) - lookback
	for i := start; i < len(bars); i++ {
		b := bars[i]
		prevClose := bars[i-1].Close
		tr := math.Max(b.High-b.Low,
			math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
		if b.Close == 0 {
			return 0, false
		}
		sum += tr / b.Close
	}
	return round2(sum / float64(lookback) * 100), true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
