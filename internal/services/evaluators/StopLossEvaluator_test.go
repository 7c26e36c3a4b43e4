package evaluators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeEngine/internal/models"
	"TradeEngine/internal/services/indicators"
)

func stopTrade(direction string, staticStop float64) *models.Trade {
	return &models.Trade{
		TradeID:   "t-1",
		Symbol:    "AAPL",
		Direction: direction,
		Quantity:  50,
		InitialStopRules: []models.Rule{
			{PrimarySource: "price", Condition: models.ConditionLTE, Value: staticStop},
		},
	}
}

func smaWindow(values ...float64) *indicators.RollingWindow {
	w := indicators.NewRollingWindow(len(values))
	w.Preload(values)
	return w
}

func TestStopLossStaticOnly(t *testing.T) {
	e := NewStopLossEvaluator(nil)
	trade := stopTrade(models.DirectionLong, 200)

	assert.False(t, e.Evaluate(trade, 205, nil).Triggered)
	assert.True(t, e.Evaluate(trade, 200, nil).Triggered)
	assert.True(t, e.Evaluate(trade, 195, nil).Triggered)
}

func TestStopLossShortStaticOnly(t *testing.T) {
	e := NewStopLossEvaluator(nil)
	trade := stopTrade(models.DirectionShort, 210)

	assert.False(t, e.Evaluate(trade, 205, nil).Triggered)
	assert.True(t, e.Evaluate(trade, 210, nil).Triggered)
	assert.True(t, e.Evaluate(trade, 215, nil).Triggered)
}

func TestStopLossLongPicksHigherStop(t *testing.T) {
	e := NewStopLossEvaluator(nil)

	// Static 95, dynamic SMA(3) of [98 98 98] = 98: long takes the max.
	trade := stopTrade(models.DirectionLong, 95)
	trade.TrailingStopRules = []models.Rule{
		{Indicator: models.IndicatorSMA, Parameters: models.RuleParams{Lookback: 3}},
	}
	result := e.Evaluate(trade, 100, smaWindow(98, 98, 98))

	require.NotNil(t, result.ActiveStop)
	assert.Equal(t, 98.0, result.ActiveStop.Price)
	assert.Equal(t, models.IndicatorSMA, result.ActiveStop.Type)
	assert.False(t, result.Triggered)

	assert.True(t, e.Evaluate(trade, 98, smaWindow(98, 98, 98)).Triggered)
}

func TestStopLossShortPicksLowerStop(t *testing.T) {
	e := NewStopLossEvaluator(nil)

	// Static 105, dynamic 102: short takes the min.
	trade := stopTrade(models.DirectionShort, 105)
	trade.TrailingStopRules = []models.Rule{
		{Indicator: models.IndicatorSMA, Parameters: models.RuleParams{Lookback: 3}},
	}
	result := e.Evaluate(trade, 100, smaWindow(102, 102, 102))

	require.NotNil(t, result.ActiveStop)
	assert.Equal(t, 102.0, result.ActiveStop.Price)
	assert.False(t, result.Triggered)

	assert.True(t, e.Evaluate(trade, 102, smaWindow(102, 102, 102)).Triggered)
}

func TestStopLossStaticWinsWhenMoreConservative(t *testing.T) {
	e := NewStopLossEvaluator(nil)

	trade := stopTrade(models.DirectionLong, 99)
	trade.TrailingStopRules = []models.Rule{
		{Indicator: models.IndicatorSMA, Parameters: models.RuleParams{Lookback: 3}},
	}
	result := e.Evaluate(trade, 100, smaWindow(95, 95, 95))

	require.NotNil(t, result.ActiveStop)
	assert.Equal(t, 99.0, result.ActiveStop.Price)
	assert.Equal(t, "static", result.ActiveStop.Type)
}

func TestStopLossDynamicFallsBackToStaticOnShortWindow(t *testing.T) {
	e := NewStopLossEvaluator(nil)

	trade := stopTrade(models.DirectionLong, 95)
	trade.TrailingStopRules = []models.Rule{
		{Indicator: models.IndicatorSMA, Parameters: models.RuleParams{Lookback: 10}},
	}
	result := e.Evaluate(trade, 100, smaWindow(98, 98, 98))

	require.NotNil(t, result.ActiveStop)
	assert.Equal(t, 95.0, result.ActiveStop.Price)
	assert.Nil(t, result.DynamicStop)
}

func TestStopLossNoStopConfigured(t *testing.T) {
	e := NewStopLossEvaluator(nil)
	trade := &models.Trade{Direction: models.DirectionLong}

	result := e.Evaluate(trade, 100, nil)
	assert.False(t, result.Triggered)
	assert.Nil(t, result.ActiveStop)
	assert.Equal(t, "no stop configured", result.Reason)
}

func TestStopLossWritesActiveStopToTrade(t *testing.T) {
	e := NewStopLossEvaluator(nil)
	trade := stopTrade(models.DirectionLong, 200)

	e.Evaluate(trade, 205, nil)
	require.NotNil(t, trade.ActiveStop)
	assert.Equal(t, 200.0, trade.ActiveStop.Price)
}
