package evaluators

import (
	"fmt"
	"math"

	"TradeEngine/internal/models"
)

// PortfolioData is the snapshot the risk gate evaluates against:
// account capacity, configured caps, and current holdings.
type PortfolioData struct {
	AvailableBuyingPower float64
	PortfolioValue       float64
	CurrentPrice         float64
	MarginRequirement    float64

	MaxLossPerTrade      float64
	MaxPortfolioLoss     float64
	CurrentPortfolioLoss float64
	DefaultRiskPct       float64

	MaxPositionSize  int
	MaxConcentration float64
	Positions        map[string]int
}

// PortfolioResult carries the gate decision and a structured reason on
// rejection.
type PortfolioResult struct {
	Allowed bool
	Check   string
	Reason  string

	RequiredBuyingPower float64
	PotentialLoss       float64
}

// PortfolioEvaluator is the pre-trade risk gate: buying power, per-trade
// and portfolio loss caps, and position/concentration limits. It is not
// re-checked after fill.
type PortfolioEvaluator struct{}

// NewPortfolioEvaluator creates a new portfolio evaluator.
func NewPortfolioEvaluator() *PortfolioEvaluator {
	return &PortfolioEvaluator{}
}

// Evaluate runs the gate checks in order and stops at the first failure.
func (e *PortfolioEvaluator) Evaluate(trade *models.Trade, data PortfolioData) PortfolioResult {
	required := e.RequiredBuyingPower(trade, data)
	potential := e.PotentialLoss(trade, data)

	result := PortfolioResult{
		RequiredBuyingPower: required,
		PotentialLoss:       potential,
	}

	if required > data.AvailableBuyingPower {
		result.Check = "buying_power"
		result.Reason = fmt.Sprintf("insufficient buying power: need %.2f, have %.2f",
			required, data.AvailableBuyingPower)
		return result
	}

	if data.MaxLossPerTrade > 0 && potential > data.MaxLossPerTrade {
		result.Check = "max_loss_per_trade"
		result.Reason = fmt.Sprintf("potential loss %.2f exceeds per-trade cap %.2f",
			potential, data.MaxLossPerTrade)
		return result
	}

	if data.MaxPortfolioLoss > 0 && data.CurrentPortfolioLoss+potential > data.MaxPortfolioLoss {
		result.Check = "max_portfolio_loss"
		result.Reason = fmt.Sprintf("portfolio loss %.2f plus %.2f would exceed cap %.2f",
			data.CurrentPortfolioLoss, potential, data.MaxPortfolioLoss)
		return result
	}

	if data.MaxPositionSize > 0 {
		current := data.Positions[trade.Symbol]
		if abs(current+trade.Quantity) > data.MaxPositionSize {
			result.Check = "max_position_size"
			result.Reason = fmt.Sprintf("position %d plus %d would exceed size limit %d",
				current, trade.Quantity, data.MaxPositionSize)
			return result
		}
	}

	if data.MaxConcentration > 0 && data.PortfolioValue > 0 {
		tradeValue := float64(trade.Quantity) * data.CurrentPrice
		concentration := tradeValue / data.PortfolioValue
		if concentration > data.MaxConcentration {
			result.Check = "max_concentration"
			result.Reason = fmt.Sprintf("trade value %.2f is %.1f%% of portfolio, cap is %.1f%%",
				tradeValue, concentration*100, data.MaxConcentration*100)
			return result
		}
	}

	result.Allowed = true
	return result
}

// RequiredBuyingPower is quantity * price scaled by the margin
// requirement (1.0 when unset).
func (e *PortfolioEvaluator) RequiredBuyingPower(trade *models.Trade, data PortfolioData) float64 {
	required := float64(trade.Quantity) * data.CurrentPrice
	if data.MarginRequirement > 0 {
		required *= data.MarginRequirement
	}
	return required
}

// PotentialLoss is the stop-distance loss, or a default risk percentage
// of notional when no static stop exists.
func (e *PortfolioEvaluator) PotentialLoss(trade *models.Trade, data PortfolioData) float64 {
	stop, ok := trade.StaticStopPrice()
	if !ok {
		riskPct := data.DefaultRiskPct
		if riskPct <= 0 {
			riskPct = 0.02
		}
		return float64(trade.Quantity) * data.CurrentPrice * riskPct
	}

	var lossPerShare float64
	if trade.IsLong() {
		lossPerShare = data.CurrentPrice - stop
	} else {
		lossPerShare = stop - data.CurrentPrice
	}
	return math.Abs(float64(trade.Quantity) * lossPerShare)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
