package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeEngine/internal/models"
)

func TestSMA(t *testing.T) {
	got, err := SMA([]float64{1, 2, 3, 4, 5}, 5)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	// Only the last length prices count.
	got, err = SMA([]float64{100, 100, 1, 2, 3}, 3)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)
}

func TestSMANotEnoughPrices(t *testing.T) {
	_, err := SMA([]float64{1, 2}, 3)
	assert.Error(t, err)
}

func TestEMAFlatSeriesEqualsPrice(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 50
	}
	got, err := EMA(prices, 10)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, got, 1e-9)
}

func TestEMATracksRisingSeries(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	ema, err := EMA(prices, 5)
	require.NoError(t, err)
	sma, err := SMA(prices, 5)
	require.NoError(t, err)

	// EMA weights recent prices but stays below the last price.
	assert.Greater(t, ema, 3.0)
	assert.Less(t, ema, 10.0)
	assert.NotEqual(t, sma, ema)
}

func TestEMARejectsBadInputs(t *testing.T) {
	_, err := EMA([]float64{1, 2, 3}, 0)
	assert.Error(t, err)
	_, err = EMA([]float64{1, 2, 3}, 4)
	assert.Error(t, err)
}

func TestMovingAverageConfig(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}

	sma, err := MovingAverage(prices, models.MAConfig{Type: "sma", Length: 5})
	require.NoError(t, err)
	assert.Equal(t, 3.0, sma)

	ema, err := MovingAverage(prices, models.MAConfig{Type: "ema", Length: 5})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, ema, 1e-9)

	// Unknown type falls back to SMA.
	got, err := MovingAverage(prices, models.MAConfig{Type: "wma", Length: 5})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestRollingWindowEviction(t *testing.T) {
	w := NewRollingWindow(3)
	w.Preload([]float64{1, 2, 3})
	assert.Equal(t, []float64{1, 2, 3}, w.Window())

	w.Append(4)
	assert.Equal(t, []float64{2, 3, 4}, w.Window())
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 3, w.Capacity())
}

func TestRollingWindowCopyIsolation(t *testing.T) {
	w := NewRollingWindow(3)
	w.Preload([]float64{1, 2, 3})
	out := w.Window()
	out[0] = 99
	assert.Equal(t, []float64{1, 2, 3}, w.Window())
}
