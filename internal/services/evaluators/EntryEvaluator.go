package evaluators

import (
	"fmt"

	"TradeEngine/internal/models"
	"TradeEngine/internal/services/indicators"
)

// EntryResult is the outcome of one entry evaluation.
type EntryResult struct {
	Triggered bool
	Reason    string
	Price     float64
}

// EntryEvaluator decides whether a trade's entry conditions are met at
// the current price. Stateless per call.
type EntryEvaluator struct{}

// NewEntryEvaluator creates a new entry evaluator.
func NewEntryEvaluator() *EntryEvaluator {
	return &EntryEvaluator{}
}

// Evaluate checks every entry rule against the current price. All rules
// must pass for the entry to trigger. Indicator rules that lack enough
// window data report "insufficient data" — not triggered, not an error.
func (e *EntryEvaluator) Evaluate(trade *models.Trade, price float64, window *indicators.RollingWindow) EntryResult {
	if len(trade.EntryRules) == 0 {
		return EntryResult{Reason: "no entry rules", Price: price}
	}

	for _, rule := range trade.EntryRules {
		ok, reason := e.evaluateRule(trade, rule, price, window)
		if !ok {
			return EntryResult{Reason: reason, Price: price}
		}
	}
	return EntryResult{Triggered: true, Price: price}
}

func (e *EntryEvaluator) evaluateRule(trade *models.Trade, rule models.Rule, price float64, window *indicators.RollingWindow) (bool, string) {
	if rule.Indicator == "" {
		// Simple threshold. The comparison direction follows the trade,
		// not the stored condition: Long enters at or above the trigger,
		// Short at or below.
		if trade.IsLong() {
			if price >= rule.Value {
				return true, ""
			}
			return false, fmt.Sprintf("price %.2f below entry trigger %.2f", price, rule.Value)
		}
		if price <= rule.Value {
			return true, ""
		}
		return false, fmt.Sprintf("price %.2f above entry trigger %.2f", price, rule.Value)
	}

	return e.evaluateIndicatorRule(trade, rule, price, window)
}

func (e *EntryEvaluator) evaluateIndicatorRule(trade *models.Trade, rule models.Rule, price float64, window *indicators.RollingWindow) (bool, string) {
	lookback := rule.Parameters.Lookback
	if lookback <= 0 {
		lookback = 20
	}

	switch rule.Indicator {
	case models.IndicatorEMACross:
		slow := lookback
		if rule.Parameters.MAConfig != nil && rule.Parameters.MAConfig.Length > 0 {
			slow = rule.Parameters.MAConfig.Length
		}
		fast := lookback
		if slow <= fast {
			// Lookback names the fast leg; default the slow leg to 2x.
			slow = fast * 2
		}
		if window == nil || window.Len() < slow {
			return false, "insufficient data"
		}
		prices := window.Window()
		fastEMA, err := indicators.EMA(prices, fast)
		if err != nil {
			return false, "insufficient data"
		}
		slowEMA, err := indicators.EMA(prices, slow)
		if err != nil {
			return false, "insufficient data"
		}
		if trade.IsLong() {
			if fastEMA > slowEMA {
				return true, ""
			}
			return false, fmt.Sprintf("fast EMA %.2f not above slow EMA %.2f", fastEMA, slowEMA)
		}
		if fastEMA < slowEMA {
			return true, ""
		}
		return false, fmt.Sprintf("fast EMA %.2f not below slow EMA %.2f", fastEMA, slowEMA)

	case models.IndicatorEMA, models.IndicatorSMA, models.IndicatorCustomMA:
		if window == nil || window.Len() < lookback {
			return false, "insufficient data"
		}
		prices := window.Window()
		var ma float64
		var err error
		switch rule.Indicator {
		case models.IndicatorEMA:
			ma, err = indicators.EMA(prices, lookback)
		case models.IndicatorSMA:
			ma, err = indicators.SMA(prices, lookback)
		default:
			cfg := models.MAConfig{Type: models.IndicatorSMA, Length: lookback}
			if rule.Parameters.MAConfig != nil {
				cfg = *rule.Parameters.MAConfig
			}
			ma, err = indicators.MovingAverage(prices, cfg)
		}
		if err != nil {
			return false, "insufficient data"
		}
		if trade.IsLong() {
			if price >= ma {
				return true, ""
			}
			return false, fmt.Sprintf("price %.2f below %s(%d) %.2f", price, rule.Indicator, lookback, ma)
		}
		if price <= ma {
			return true, ""
		}
		return false, fmt.Sprintf("price %.2f above %s(%d) %.2f", price, rule.Indicator, lookback, ma)

	default:
		return false, fmt.Sprintf("unsupported entry indicator %q", rule.Indicator)
	}
}
