package evaluators

import (
	"go.uber.org/zap"

	"TradeEngine/internal/models"
)

// TakeProfitTarget is one triggered target with its resolved exit size.
type TakeProfitTarget struct {
	Price   float64
	ExitQty int
}

// TakeProfitResult is the outcome of one take-profit evaluation.
// Targets are sorted primary-first (rule order); the caller executes the
// first one.
type TakeProfitResult struct {
	Triggered bool
	Targets   []TakeProfitTarget
}

// TakeProfitEvaluator checks one or more price targets, each with an
// associated exit quantity (absolute or percentage of filled quantity).
type TakeProfitEvaluator struct {
	logger *zap.Logger
}

// NewTakeProfitEvaluator creates a new take-profit evaluator.
func NewTakeProfitEvaluator(logger *zap.Logger) *TakeProfitEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TakeProfitEvaluator{logger: logger}
}

// Evaluate returns every target the current price has crossed, in rule
// order (primary first).
func (e *TakeProfitEvaluator) Evaluate(trade *models.Trade, price float64) TakeProfitResult {
	result := TakeProfitResult{}

	for _, rule := range trade.TakeProfitRules {
		var hit bool
		if trade.IsLong() {
			hit = price >= rule.Value
		} else {
			hit = price <= rule.Value
		}
		if !hit {
			continue
		}
		result.Targets = append(result.Targets, TakeProfitTarget{
			Price:   rule.Value,
			ExitQty: e.exitQty(trade, rule),
		})
	}

	result.Triggered = len(result.Targets) > 0
	if result.Triggered {
		e.logger.Info("take profit triggered",
			zap.String("symbol", trade.Symbol),
			zap.Float64("price", price),
			zap.Int("targets", len(result.Targets)))
	}
	return result
}

// exitQty resolves a target's exit size: absolute shares first, then
// percent of the filled quantity, else the whole position.
func (e *TakeProfitEvaluator) exitQty(trade *models.Trade, rule models.Rule) int {
	filled := trade.FilledQty
	if filled == 0 {
		filled = trade.Quantity
	}
	if rule.ExitQty > 0 {
		if rule.ExitQty > filled {
			return filled
		}
		return rule.ExitQty
	}
	if rule.ExitPct > 0 {
		qty := int(float64(filled) * rule.ExitPct / 100)
		if qty < 1 {
			qty = 1
		}
		if qty > filled {
			qty = filled
		}
		return qty
	}
	return filled
}
