package evaluators

import (
	"go.uber.org/zap"

	"TradeEngine/internal/models"
	"TradeEngine/internal/services/indicators"
)

// StopResult is the outcome of one stop-loss evaluation.
type StopResult struct {
	Triggered   bool
	ActiveStop  *models.ActiveStop
	StaticStop  *float64
	DynamicStop *float64
	Reason      string
}

// StopLossEvaluator combines the static initial stop with a dynamic
// (indicator-based) stop when a trailing rule exists, and triggers when
// price crosses the active stop against the trade direction.
type StopLossEvaluator struct {
	logger *zap.Logger
}

// NewStopLossEvaluator creates a new stop-loss evaluator.
func NewStopLossEvaluator(logger *zap.Logger) *StopLossEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StopLossEvaluator{logger: logger}
}

// Evaluate selects the active stop and checks it against the current
// price. Exactly one stop is active at a time: when both a static and a
// dynamic stop exist, the more conservative one wins (max for Long, min
// for Short). The selection is written back to trade.ActiveStop for
// downstream inspection; it is recomputed every tick and never persisted.
func (e *StopLossEvaluator) Evaluate(trade *models.Trade, price float64, window *indicators.RollingWindow) StopResult {
	result := StopResult{}

	if static, ok := trade.StaticStopPrice(); ok {
		result.StaticStop = &static
	}

	dynamicType := ""
	if rule, ok := trade.TrailingRule(); ok {
		if stop, ok := e.dynamicStop(trade, rule, window); ok {
			result.DynamicStop = &stop
			dynamicType = rule.Indicator
		}
	}

	var active *float64
	activeType := "static"
	switch {
	case result.StaticStop != nil && result.DynamicStop != nil:
		if trade.IsLong() {
			active = maxPtr(result.StaticStop, result.DynamicStop)
		} else {
			active = minPtr(result.StaticStop, result.DynamicStop)
		}
		if active == result.DynamicStop {
			activeType = dynamicType
		}
	case result.StaticStop != nil:
		active = result.StaticStop
	case result.DynamicStop != nil:
		active = result.DynamicStop
		activeType = dynamicType
	}

	if active == nil {
		result.Reason = "no stop configured"
		trade.ActiveStop = nil
		return result
	}

	result.ActiveStop = &models.ActiveStop{Type: activeType, Price: *active}
	trade.ActiveStop = result.ActiveStop

	if trade.IsLong() {
		result.Triggered = price <= *active
	} else {
		result.Triggered = price >= *active
	}
	return result
}

func (e *StopLossEvaluator) dynamicStop(trade *models.Trade, rule models.Rule, window *indicators.RollingWindow) (float64, bool) {
	lookback := rule.Parameters.Lookback
	if lookback <= 0 {
		lookback = 20
	}
	if window == nil || window.Len() < lookback {
		e.logger.Debug("not enough prices for trailing rule",
			zap.String("symbol", trade.Symbol),
			zap.Int("needed", lookback),
			zap.Int("have", windowLen(window)))
		return 0, false
	}

	prices := window.Window()
	offset := rule.Parameters.Offset
	if !trade.IsLong() {
		offset = -offset
	}

	switch rule.Indicator {
	case models.IndicatorEMA:
		ema, err := indicators.EMA(prices, lookback)
		if err != nil {
			return 0, false
		}
		return ema - offset, true
	case models.IndicatorSMA:
		sma, err := indicators.SMA(prices, lookback)
		if err != nil {
			return 0, false
		}
		return sma - offset, true
	case models.IndicatorCustomMA:
		cfg := models.MAConfig{Type: models.IndicatorSMA, Length: lookback}
		if rule.Parameters.MAConfig != nil {
			cfg = *rule.Parameters.MAConfig
		}
		ma, err := indicators.MovingAverage(prices, cfg)
		if err != nil {
			return 0, false
		}
		return ma - offset, true
	default:
		e.logger.Warn("unsupported trailing stop indicator", zap.String("indicator", rule.Indicator))
		return 0, false
	}
}

func windowLen(w *indicators.RollingWindow) int {
	if w == nil {
		return 0
	}
	return w.Len()
}

func maxPtr(a, b *float64) *float64 {
	if *a >= *b {
		return a
	}
	return b
}

func minPtr(a, b *float64) *float64 {
	if *a <= *b {
		return a
	}
	return b
}
