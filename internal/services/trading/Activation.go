package trading

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"TradeEngine/internal/models"
)

// ValidationError carries the full list of problems found while
// validating a trade for activation.
type ValidationError struct {
	Symbol  string
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("trade %s failed validation: %s", e.Symbol, strings.Join(e.Reasons, "; "))
}

// ValidateTrade runs shape validation and returns all problems at once.
func ValidateTrade(trade *models.Trade) error {
	if reasons := trade.Validate(); len(reasons) > 0 {
		return &ValidationError{Symbol: trade.Symbol, Reasons: reasons}
	}
	return nil
}

// CalculatePositionSize derives the share quantity from the risk budget
// and the stop distance: portfolio value times risk percent, divided by
// the per-share distance between entry and stop.
func CalculatePositionSize(portfolioValue, riskPct, entryPrice, stopPrice float64) (int, error) {
	if portfolioValue <= 0 || riskPct <= 0 {
		return 0, fmt.Errorf("invalid sizing inputs: portfolio value %.2f, risk %.4f", portfolioValue, riskPct)
	}
	distance := math.Abs(entryPrice - stopPrice)
	if distance <= 0 {
		return 0, fmt.Errorf("entry %.2f and stop %.2f have no distance", entryPrice, stopPrice)
	}

	riskBudget := portfolioValue * riskPct
	qty := int(math.Floor(riskBudget / distance))
	if qty <= 0 {
		return 0, fmt.Errorf("risk budget %.2f too small for stop distance %.2f", riskBudget, distance)
	}
	return qty, nil
}

// ActivateTrade validates a draft, sizes it when no explicit quantity
// is set, and moves it to Working/Pending. It is the only way a trade
// enters evaluation.
func (m *TradeManager) ActivateTrade(symbol string) error {
	_, err := m.store.Update(symbol, func(t *models.Trade) error {
		if t.Editing {
			return fmt.Errorf("trade %s is being edited", symbol)
		}
		if err := ValidateTrade(t); err != nil {
			return err
		}

		if t.Quantity <= 0 {
			entry, ok := firstEntryPrice(t)
			if !ok {
				return fmt.Errorf("trade %s has no price-based entry rule to size from", symbol)
			}
			stop, ok := t.StaticStopPrice()
			if !ok {
				return fmt.Errorf("trade %s has no static stop to size from", symbol)
			}
			qty, err := CalculatePositionSize(t.PortfolioValue, t.RiskPct, entry, stop)
			if err != nil {
				return err
			}
			t.Quantity = qty
			m.logger.Info("position sized",
				zap.String("symbol", symbol),
				zap.Int("qty", qty),
				zap.Float64("entry", entry),
				zap.Float64("stop", stop))
		}

		nextOrder, err := t.OrderStatus.Transition(models.OrderStatusWorking)
		if err != nil {
			return err
		}
		nextTrade, err := t.TradeStatus.Transition(models.TradeStatusPending)
		if err != nil {
			return err
		}
		from, fromTrade := t.OrderStatus, t.TradeStatus
		t.OrderStatus = nextOrder
		t.TradeStatus = nextTrade
		m.lifecycle.LogTransition(t.TradeID, symbol, string(from), string(nextOrder), "activate", "")
		m.lifecycle.LogTransition(t.TradeID, symbol, string(fromTrade), string(nextTrade), "activate", "")
		return nil
	})
	return err
}

// firstEntryPrice returns the value of the first simple price entry
// rule, the reference price for sizing.
func firstEntryPrice(t *models.Trade) (float64, bool) {
	for _, r := range t.EntryRules {
		if r.Indicator == "" && r.Value > 0 {
			return r.Value, true
		}
	}
	return 0, false
}
