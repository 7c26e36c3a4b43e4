package evaluators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"TradeEngine/internal/models"
)

func gateTrade() *models.Trade {
	return &models.Trade{
		TradeID:   "t-1",
		Symbol:    "AAPL",
		Direction: models.DirectionLong,
		Quantity:  100,
		InitialStopRules: []models.Rule{
			{PrimarySource: "price", Condition: models.ConditionLTE, Value: 95},
		},
	}
}

func gateData() PortfolioData {
	return PortfolioData{
		AvailableBuyingPower: 50_000,
		PortfolioValue:       100_000,
		CurrentPrice:         100,
		MaxLossPerTrade:      2_000,
		MaxPortfolioLoss:     10_000,
		MaxPositionSize:      1_000,
		MaxConcentration:     0.25,
		Positions:            map[string]int{},
	}
}

func TestPortfolioGateAllows(t *testing.T) {
	e := NewPortfolioEvaluator()
	result := e.Evaluate(gateTrade(), gateData())

	assert.True(t, result.Allowed)
	assert.Equal(t, 10_000.0, result.RequiredBuyingPower)
	assert.Equal(t, 500.0, result.PotentialLoss)
}

func TestPortfolioGateBuyingPower(t *testing.T) {
	e := NewPortfolioEvaluator()
	data := gateData()
	data.AvailableBuyingPower = 5_000

	result := e.Evaluate(gateTrade(), data)
	assert.False(t, result.Allowed)
	assert.Equal(t, "buying_power", result.Check)
}

func TestPortfolioGateMaxLossPerTrade(t *testing.T) {
	e := NewPortfolioEvaluator()
	trade := gateTrade()
	trade.InitialStopRules[0].Value = 70 // 30/share * 100 = 3000 potential loss

	result := e.Evaluate(trade, gateData())
	assert.False(t, result.Allowed)
	assert.Equal(t, "max_loss_per_trade", result.Check)
}

func TestPortfolioGateMaxPortfolioLoss(t *testing.T) {
	e := NewPortfolioEvaluator()
	data := gateData()
	data.CurrentPortfolioLoss = 9_800

	result := e.Evaluate(gateTrade(), data)
	assert.False(t, result.Allowed)
	assert.Equal(t, "max_portfolio_loss", result.Check)
}

func TestPortfolioGateMaxPositionSize(t *testing.T) {
	e := NewPortfolioEvaluator()
	data := gateData()
	data.Positions["AAPL"] = 950

	result := e.Evaluate(gateTrade(), data)
	assert.False(t, result.Allowed)
	assert.Equal(t, "max_position_size", result.Check)
}

func TestPortfolioGateMaxConcentration(t *testing.T) {
	e := NewPortfolioEvaluator()
	trade := gateTrade()
	trade.Quantity = 300 // 30k notional on a 100k portfolio
	trade.InitialStopRules[0].Value = 99

	result := e.Evaluate(trade, gateData())
	assert.False(t, result.Allowed)
	assert.Equal(t, "max_concentration", result.Check)
}

func TestPortfolioPotentialLossWithoutStaticStop(t *testing.T) {
	e := NewPortfolioEvaluator()
	trade := gateTrade()
	trade.InitialStopRules = nil

	// Falls back to the default risk percentage of notional.
	data := gateData()
	data.DefaultRiskPct = 0.05
	assert.Equal(t, 500.0, e.PotentialLoss(trade, data))

	data.DefaultRiskPct = 0
	assert.Equal(t, 200.0, e.PotentialLoss(trade, data))
}

func TestPortfolioMarginRequirement(t *testing.T) {
	e := NewPortfolioEvaluator()
	data := gateData()
	data.MarginRequirement = 0.5

	assert.Equal(t, 5_000.0, e.RequiredBuyingPower(gateTrade(), data))
}
