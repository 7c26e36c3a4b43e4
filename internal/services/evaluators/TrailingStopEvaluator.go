package evaluators

import (
	"go.uber.org/zap"

	"TradeEngine/internal/models"
	"TradeEngine/internal/services/indicators"
)

// TrailingResult describes one trailing-stop update or trigger check.
type TrailingResult struct {
	Triggered    bool
	ShouldUpdate bool
	CurrentStop  *float64
	NewStop      *float64
	Reason       string
}

// TrailingStopEvaluator manages the virtual trailing stop: a ratcheted
// value recomputed from the configured indicator, only ever tightened,
// and sent to the broker only when triggered. Update and trigger are two
// separate calls: a tick is judged against the stored ratchet before any
// update from that same tick is applied.
type TrailingStopEvaluator struct {
	logger *zap.Logger
}

// NewTrailingStopEvaluator creates a new trailing-stop evaluator.
func NewTrailingStopEvaluator(logger *zap.Logger) *TrailingStopEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrailingStopEvaluator{logger: logger}
}

// ShouldUpdate computes a candidate stop from the configured indicator
// and reports whether it tightens the stored ratchet.
func (e *TrailingStopEvaluator) ShouldUpdate(trade *models.Trade, price float64, window *indicators.RollingWindow) (bool, TrailingResult) {
	rule, ok := trade.TrailingRule()
	if !ok {
		return false, TrailingResult{Reason: "no trailing rule"}
	}

	lookback := rule.Parameters.Lookback
	if lookback <= 0 {
		lookback = 20
	}
	if window == nil || window.Len() < lookback {
		return false, TrailingResult{Reason: "insufficient data"}
	}

	newStop, ok := e.calculate(trade, rule, window)
	if !ok {
		return false, TrailingResult{Reason: "calculation failed"}
	}

	result := TrailingResult{
		CurrentStop: trade.CurrentTrailingStop,
		NewStop:     &newStop,
	}
	result.ShouldUpdate = e.tightens(trade, trade.CurrentTrailingStop, newStop)

	if result.ShouldUpdate && trade.CurrentTrailingStop != nil {
		e.logger.Info("trailing stop update",
			zap.String("symbol", trade.Symbol),
			zap.Float64("from", *trade.CurrentTrailingStop),
			zap.Float64("to", newStop))
	}
	return result.ShouldUpdate, result
}

// Update stores a new ratchet value on the trade.
func (e *TrailingStopEvaluator) Update(trade *models.Trade, newStop float64) {
	trade.CurrentTrailingStop = &newStop
}

// ShouldTrigger checks the current price against the stored ratchet, not
// a freshly computed candidate.
func (e *TrailingStopEvaluator) ShouldTrigger(trade *models.Trade, price float64) (bool, TrailingResult) {
	current := trade.CurrentTrailingStop
	if current == nil {
		return false, TrailingResult{Reason: "no trailing stop active"}
	}

	var triggered bool
	if trade.IsLong() {
		triggered = price <= *current
	} else {
		triggered = price >= *current
	}

	if triggered {
		e.logger.Info("trailing stop triggered",
			zap.String("symbol", trade.Symbol),
			zap.Float64("price", price),
			zap.Float64("stop", *current))
	}
	return triggered, TrailingResult{Triggered: triggered, CurrentStop: current}
}

// Initialize seeds the ratchet when the entry fills. Returns false when
// no trailing rule is configured or the window is too short.
func (e *TrailingStopEvaluator) Initialize(trade *models.Trade, window *indicators.RollingWindow) bool {
	rule, ok := trade.TrailingRule()
	if !ok {
		return false
	}
	stop, ok := e.calculate(trade, rule, window)
	if !ok {
		return false
	}
	trade.CurrentTrailingStop = &stop
	e.logger.Info("initialized trailing stop",
		zap.String("symbol", trade.Symbol),
		zap.Float64("stop", stop))
	return true
}

// tightens reports whether newStop is strictly more favorable to the
// position than the stored one. The ratchet never loosens.
func (e *TrailingStopEvaluator) tightens(trade *models.Trade, current *float64, newStop float64) bool {
	if current == nil {
		return true
	}
	if trade.IsLong() {
		return newStop > *current
	}
	return newStop < *current
}

func (e *TrailingStopEvaluator) calculate(trade *models.Trade, rule models.Rule, window *indicators.RollingWindow) (float64, bool) {
	if window == nil {
		return 0, false
	}
	prices := window.Window()
	params := rule.Parameters
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = 20
	}

	// The offset pushes the stop away from price: below the MA for
	// longs, above it for shorts.
	offset := params.Offset
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
		if params.MAConfig != nil {
			cfg = *params.MAConfig
		}
		ma, err := indicators.MovingAverage(prices, cfg)
		if err != nil {
			return 0, false
		}
		return ma - offset, true

	case models.IndicatorATR:
		period := params.ATRPeriod
		if period <= 0 {
			period = 14
		}
		multiplier := params.ATRMultiplier
		if multiplier == 0 {
			multiplier = 2.0
		}
		if len(prices) < period+1 {
			return 0, false
		}
		// Tick-window ATR: mean absolute move over the last period steps.
		sum := 0.0
		for i := len(prices) - period; i < len(prices); i++ {
			d := prices[i] - prices[i-1]
			if d < 0 {
				d = -d
			}
			sum += d
		}
		atr := sum / float64(period)
		last := prices[len(prices)-1]
		if trade.IsLong() {
			return last - atr*multiplier, true
		}
		return last + atr*multiplier, true

	default:
		e.logger.Warn("unsupported trailing stop indicator", zap.String("indicator", rule.Indicator))
		return 0, false
	}
}
