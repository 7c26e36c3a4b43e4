// Package trading orchestrates the trade lifecycle: tick evaluation,
// entry and exit placement, fill handling, and position reconciliation.
package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"TradeEngine/internal/metrics"
	"TradeEngine/internal/models"
	"TradeEngine/internal/operations/broker"
	"TradeEngine/internal/operations/execution"
	"TradeEngine/internal/repositories"
	"TradeEngine/internal/services/evaluators"
	"TradeEngine/internal/services/indicators"
	"TradeEngine/internal/services/lifecycle"
	"TradeEngine/internal/services/resilience"
)

// PortfolioProvider supplies the account-level inputs for the portfolio
// gate at entry time.
type PortfolioProvider func(ctx context.Context, trade *models.Trade, price float64) (evaluators.PortfolioData, error)

// WindowProvider resolves the rolling price window for a symbol, owned
// by the tick handler.
type WindowProvider func(symbol string) *indicators.RollingWindow

// Deps wires a TradeManager.
type Deps struct {
	Store      *repositories.TradeStore
	Executor   *execution.OrderExecutor
	Adapter    broker.Adapter
	Lifecycle  *lifecycle.Logger
	Executions *repositories.ExecutionRepository // optional ledger sink
	Portfolio  PortfolioProvider                 // optional, nil skips the gate
	Windows    WindowProvider                    // optional

	ErrorHandler *resilience.ErrorHandler
	Breaker      *resilience.CircuitBreaker

	ReconcileInterval time.Duration
	Logger            *zap.Logger
}

// TradeManager is the sole in-process writer of trade state. All status
// transitions go through it, and it owns the only consumer of the
// executor's fill events.
type TradeManager struct {
	store      *repositories.TradeStore
	executor   *execution.OrderExecutor
	adapter    broker.Adapter
	lifecycle  *lifecycle.Logger
	executions *repositories.ExecutionRepository
	portfolio  PortfolioProvider
	windows    WindowProvider

	entry    *evaluators.EntryEvaluator
	stop     *evaluators.StopLossEvaluator
	trailing *evaluators.TrailingStopEvaluator
	profit   *evaluators.TakeProfitEvaluator
	gate     *evaluators.PortfolioEvaluator

	errorHandler *resilience.ErrorHandler
	breaker      *resilience.CircuitBreaker

	reconcileInterval time.Duration
	logger            *zap.Logger

	stopC chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewTradeManager creates the manager. Start must be called to begin
// consuming fills and reconciling.
func NewTradeManager(deps Deps) *TradeManager {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	errorHandler := deps.ErrorHandler
	if errorHandler == nil {
		errorHandler = resilience.NewErrorHandler(3, 100*time.Millisecond, logger)
	}
	breaker := deps.Breaker
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("broker", 5, 30*time.Second, logger)
	}
	interval := deps.ReconcileInterval
	if interval <= 0 {
		interval = time.Minute
	}

	return &TradeManager{
		store:             deps.Store,
		executor:          deps.Executor,
		adapter:           deps.Adapter,
		lifecycle:         deps.Lifecycle,
		executions:        deps.Executions,
		portfolio:         deps.Portfolio,
		windows:           deps.Windows,
		entry:             evaluators.NewEntryEvaluator(),
		stop:              evaluators.NewStopLossEvaluator(logger),
		trailing:          evaluators.NewTrailingStopEvaluator(logger),
		profit:            evaluators.NewTakeProfitEvaluator(logger),
		gate:              evaluators.NewPortfolioEvaluator(),
		errorHandler:      errorHandler,
		breaker:           breaker,
		reconcileInterval: interval,
		logger:            logger,
		stopC:             make(chan struct{}),
	}
}

// Start launches the fill consumer and the reconciliation loop.
func (m *TradeManager) Start(ctx context.Context) {
	m.wg.Add(2)
	go m.consumeFills(ctx)
	go m.reconcileLoop(ctx)
}

// Stop shuts the background loops down. Safe to call more than once.
func (m *TradeManager) Stop() {
	m.once.Do(func() {
		close(m.stopC)
		m.wg.Wait()
	})
}

// EvaluateOnTick runs one tick through the lifecycle for its symbol.
// Terminal and editing trades are skipped, and nothing here returns an
// error to the tick source: failures are logged and counted.
func (m *TradeManager) EvaluateOnTick(ctx context.Context, tick models.Tick, window *indicators.RollingWindow) {
	metrics.TicksEvaluated.WithLabelValues(tick.Symbol).Inc()

	trade, err := m.store.FindBySymbol(tick.Symbol)
	if err != nil {
		if !errors.Is(err, repositories.ErrTradeNotFound) {
			m.logger.Error("load trade for tick failed",
				zap.String("symbol", tick.Symbol), zap.Error(err))
		}
		return
	}
	if trade.IsTerminal() || trade.Editing {
		return
	}

	switch {
	case trade.OrderStatus == models.OrderStatusWorking && trade.TradeStatus == models.TradeStatusPending:
		m.evaluateEntry(ctx, trade, tick.Price, window)
	case trade.OrderStatus == models.OrderStatusContingentOrderWorking && trade.TradeStatus == models.TradeStatusFilled:
		m.evaluateExits(ctx, trade, tick.Price, window)
	}
}

// evaluateEntry checks entry rules, runs the portfolio gate, and places
// the entry order.
func (m *TradeManager) evaluateEntry(ctx context.Context, trade *models.Trade, price float64, window *indicators.RollingWindow) {
	result := m.entry.Evaluate(trade, price, window)
	if !result.Triggered {
		return
	}

	if m.portfolio != nil {
		data, err := m.portfolio(ctx, trade, price)
		if err != nil {
			m.logger.Error("portfolio data unavailable, holding entry",
				zap.String("symbol", trade.Symbol), zap.Error(err))
			return
		}
		gate := m.gate.Evaluate(trade, data)
		if !gate.Allowed {
			m.lifecycle.LogEvent(trade.TradeID, trade.Symbol, "entry_blocked",
				fmt.Sprintf("%s: %s", gate.Check, gate.Reason))
			m.logger.Warn("entry blocked by portfolio gate",
				zap.String("symbol", trade.Symbol),
				zap.String("check", gate.Check),
				zap.String("reason", gate.Reason))
			return
		}
	}

	// One outstanding broker order per trade.
	if m.executor.Outstanding(trade.Symbol) {
		return
	}
	if !m.breaker.CanExecute() {
		m.logger.Warn("broker circuit open, skipping entry",
			zap.String("symbol", trade.Symbol))
		return
	}

	err := m.errorHandler.Execute(ctx, "place_entry", func(ctx context.Context) error {
		_, err := m.executor.PlaceEntry(ctx, trade)
		return err
	})
	if err != nil {
		m.breaker.RecordFailure()
		m.logger.Error("entry order failed",
			zap.String("symbol", trade.Symbol), zap.Error(err))
		return
	}
	m.breaker.RecordSuccess()

	m.transition(trade.Symbol, models.OrderStatusEntryOrderSubmitted, "", "entry_triggered",
		result.Reason, nil)
}

// evaluateExits applies the exit precedence for one tick: stop loss,
// then take profit, then the trailing stop. The trailing trigger is
// checked against the stored ratchet before this tick's update is
// applied.
func (m *TradeManager) evaluateExits(ctx context.Context, trade *models.Trade, price float64, window *indicators.RollingWindow) {
	remaining := trade.FilledQty - trade.ExitQty
	if remaining <= 0 {
		return
	}

	stopRes := m.stop.Evaluate(trade, price, window)
	if stopRes.Triggered {
		m.submitExit(ctx, trade, remaining, "stop_loss", stopRes.Reason)
		return
	}

	tpRes := m.profit.Evaluate(trade, price)
	if tpRes.Triggered {
		// Primary target only. When several targets are crossed at once
		// the re-armed contingent stage picks the rest up on later ticks.
		target := tpRes.Targets[0]
		qty := target.ExitQty
		if qty > remaining {
			qty = remaining
		}
		m.submitExit(ctx, trade, qty, "take_profit",
			fmt.Sprintf("target %.2f reached at %.2f", target.Price, price))
		return
	}

	if triggered, tres := m.trailing.ShouldTrigger(trade, price); triggered {
		m.submitExit(ctx, trade, remaining, "trailing_stop", tres.Reason)
		return
	}

	if should, tres := m.trailing.ShouldUpdate(trade, price, window); should {
		newStop := *tres.NewStop
		m.trailing.Update(trade, newStop)
		_, err := m.store.Update(trade.Symbol, func(t *models.Trade) error {
			t.CurrentTrailingStop = &newStop
			return nil
		})
		if err != nil {
			m.logger.Error("persist trailing stop failed",
				zap.String("symbol", trade.Symbol), zap.Error(err))
			return
		}
		m.lifecycle.LogEvent(trade.TradeID, trade.Symbol, "trailing_stop_updated",
			fmt.Sprintf("%.2f", newStop))
	}
}

// submitExit places a closing order and advances the order status.
func (m *TradeManager) submitExit(ctx context.Context, trade *models.Trade, qty int, trigger, reason string) {
	if qty <= 0 {
		return
	}
	if m.executor.Outstanding(trade.Symbol) {
		return
	}
	if !m.breaker.CanExecute() {
		m.logger.Warn("broker circuit open, skipping exit",
			zap.String("symbol", trade.Symbol), zap.String("trigger", trigger))
		return
	}

	err := m.errorHandler.Execute(ctx, "place_exit", func(ctx context.Context) error {
		_, err := m.executor.PlaceExit(ctx, trade, qty)
		return err
	})
	if err != nil {
		m.breaker.RecordFailure()
		m.logger.Error("exit order failed",
			zap.String("symbol", trade.Symbol),
			zap.String("trigger", trigger), zap.Error(err))
		return
	}
	m.breaker.RecordSuccess()

	m.transition(trade.Symbol, models.OrderStatusContingentOrderSubmitted, "", trigger, reason, nil)
}

// MarkFilled records the entry fill: statuses advance, fill facts are
// stored, and the trailing stop ratchet is seeded.
func (m *TradeManager) MarkFilled(symbol string, price float64, qty int) {
	var window *indicators.RollingWindow
	if m.windows != nil {
		window = m.windows(symbol)
	}

	updated, err := m.store.Update(symbol, func(t *models.Trade) error {
		next, err := t.OrderStatus.Transition(models.OrderStatusContingentOrderWorking)
		if err != nil {
			return err
		}
		nextTrade, err := t.TradeStatus.Transition(models.TradeStatusFilled)
		if err != nil {
			return err
		}
		from, fromTrade := t.OrderStatus, t.TradeStatus
		t.OrderStatus = next
		t.TradeStatus = nextTrade
		t.FilledQty = qty
		t.ExecutedPrice = price
		if m.trailing.Initialize(t, window) {
			m.lifecycle.LogEvent(t.TradeID, symbol, "trailing_stop_initialized",
				fmt.Sprintf("%.2f", *t.CurrentTrailingStop))
		}
		m.lifecycle.LogTransition(t.TradeID, symbol, string(from), string(next),
			"entry_fill", fmt.Sprintf("filled %d @ %.2f", qty, price))
		m.lifecycle.LogTransition(t.TradeID, symbol, string(fromTrade), string(nextTrade),
			"entry_fill", "")
		return nil
	})
	if err != nil {
		m.logger.Error("mark filled failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	m.logger.Info("entry filled",
		zap.String("symbol", symbol),
		zap.Float64("price", price),
		zap.Int("qty", qty),
		zap.String("order_status", string(updated.OrderStatus)))
}

// MarkClosed records an exit fill. A full exit closes the trade and
// realizes P&L; a partial exit re-arms the contingent stage for the
// remainder.
func (m *TradeManager) MarkClosed(symbol string, price float64, qty int) {
	var closed *models.Trade
	updated, err := m.store.Update(symbol, func(t *models.Trade) error {
		prevQty := t.ExitQty
		t.ExitQty += qty
		// Exit price is the quantity-weighted average across partial
		// fills; P&L accumulates per fill so earlier partial exits keep
		// their own prices.
		t.ExitPrice = (t.ExitPrice*float64(prevQty) + price*float64(qty)) / float64(t.ExitQty)
		t.RealizedPnL += fillPnL(t, price, qty)
		if t.ExitQty < t.FilledQty {
			// Remainder still held. The contingent stage re-arms so the
			// next exit trigger can submit again.
			from := t.OrderStatus
			t.OrderStatus = models.OrderStatusContingentOrderWorking
			m.lifecycle.LogTransition(t.TradeID, symbol, string(from),
				string(t.OrderStatus), "partial_exit_fill",
				fmt.Sprintf("exited %d @ %.2f", qty, price))
			return nil
		}

		next, err := t.OrderStatus.Transition(models.OrderStatusInactive)
		if err != nil {
			return err
		}
		nextTrade, err := t.TradeStatus.Transition(models.TradeStatusClosed)
		if err != nil {
			return err
		}
		from, fromTrade := t.OrderStatus, t.TradeStatus
		t.OrderStatus = next
		t.TradeStatus = nextTrade
		m.lifecycle.LogTransition(t.TradeID, symbol, string(from), string(next),
			"exit_fill", fmt.Sprintf("exited %d @ %.2f", qty, price))
		m.lifecycle.LogTransition(t.TradeID, symbol, string(fromTrade), string(nextTrade),
			"exit_fill", fmt.Sprintf("realized pnl %.2f", t.RealizedPnL))
		closed = t
		return nil
	})
	if err != nil {
		m.logger.Error("mark closed failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	if closed != nil {
		result := "loss"
		if updated.RealizedPnL >= 0 {
			result = "win"
		}
		metrics.TradesClosed.WithLabelValues(result).Inc()
		metrics.RealizedPnL.Add(updated.RealizedPnL)
		m.recordExecution(updated)
		m.logger.Info("trade closed",
			zap.String("symbol", symbol),
			zap.Float64("exit_price", price),
			zap.Float64("realized_pnl", updated.RealizedPnL))
	}
}

// Cancel moves a non-terminal trade to Cancelled on both axes.
func (m *TradeManager) Cancel(symbol, reason string) error {
	_, err := m.store.Update(symbol, func(t *models.Trade) error {
		if t.IsTerminal() {
			return fmt.Errorf("trade for %s is already terminal", symbol)
		}
		next, err := t.OrderStatus.Transition(models.OrderStatusCancelled)
		if err != nil {
			return err
		}
		from := t.OrderStatus
		t.OrderStatus = next
		if t.TradeStatus.CanTransition(models.TradeStatusCancelled) {
			fromTrade := t.TradeStatus
			t.TradeStatus = models.TradeStatusCancelled
			m.lifecycle.LogTransition(t.TradeID, symbol, string(fromTrade),
				string(t.TradeStatus), "cancel", reason)
		}
		m.lifecycle.LogTransition(t.TradeID, symbol, string(from), string(next),
			"cancel", reason)
		return nil
	})
	return err
}

// PreloadVolatility computes ADR and ATR for every active trade from
// historical bars and stores them on the trade record. Per-symbol
// failures are logged and skipped.
func (m *TradeManager) PreloadVolatility(ctx context.Context, adrLookback, atrLookback int) {
	trades, err := m.store.Load()
	if err != nil {
		m.logger.Error("volatility preload: load trades failed", zap.Error(err))
		return
	}

	for i := range trades {
		trade := &trades[i]
		if trade.IsTerminal() {
			continue
		}
		days := adrLookback + atrLookback + 2
		if !m.breaker.CanExecute() {
			m.logger.Warn("broker circuit open, skipping volatility preload",
				zap.String("symbol", trade.Symbol))
			continue
		}
		var bars []models.Bar
		err := m.errorHandler.Execute(ctx, "load_history", func(ctx context.Context) error {
			var err error
			bars, err = m.adapter.GetHistoricalData(ctx, trade.Symbol, days)
			return err
		})
		if err != nil {
			m.breaker.RecordFailure()
			m.logger.Warn("volatility preload failed",
				zap.String("symbol", trade.Symbol), zap.Error(err))
			continue
		}
		m.breaker.RecordSuccess()

		vol := models.Volatility{}
		haveAny := false
		if adr, ok := indicators.ADR(bars, adrLookback); ok {
			vol.ADR = adr
			haveAny = true
		}
		if atr, ok := indicators.ATR(bars, atrLookback); ok {
			vol.ATR = atr
			haveAny = true
		}
		if !haveAny {
			m.logger.Warn("not enough bars for volatility",
				zap.String("symbol", trade.Symbol), zap.Int("bars", len(bars)))
			continue
		}

		_, err = m.store.Update(trade.Symbol, func(t *models.Trade) error {
			t.Volatility = &vol
			return nil
		})
		if err != nil {
			m.logger.Error("persist volatility failed",
				zap.String("symbol", trade.Symbol), zap.Error(err))
		}
	}
}

// transition applies one order-status move (and optional trade-status
// move) to the authoritative record.
func (m *TradeManager) transition(symbol string, nextOrder models.OrderStatus, nextTrade models.TradeStatus, trigger, detail string, extra func(*models.Trade)) {
	_, err := m.store.Update(symbol, func(t *models.Trade) error {
		if nextOrder != "" {
			next, err := t.OrderStatus.Transition(nextOrder)
			if err != nil {
				return err
			}
			m.lifecycle.LogTransition(t.TradeID, symbol, string(t.OrderStatus), string(next), trigger, detail)
			t.OrderStatus = next
		}
		if nextTrade != "" {
			next, err := t.TradeStatus.Transition(nextTrade)
			if err != nil {
				return err
			}
			m.lifecycle.LogTransition(t.TradeID, symbol, string(t.TradeStatus), string(next), trigger, detail)
			t.TradeStatus = next
		}
		if extra != nil {
			extra(t)
		}
		return nil
	})
	if err != nil {
		m.logger.Error("status transition failed",
			zap.String("symbol", symbol),
			zap.String("trigger", trigger), zap.Error(err))
	}
}

// consumeFills is the only consumer of the executor's fill events.
func (m *TradeManager) consumeFills(ctx context.Context) {
	defer m.wg.Done()
	events := m.executor.Events()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopC:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Exit {
				m.MarkClosed(ev.Symbol, ev.Price, ev.Qty)
			} else {
				m.MarkFilled(ev.Symbol, ev.Price, ev.Qty)
			}
		}
	}
}

// reconcileLoop periodically compares broker positions against filled
// trades. Mismatches are logged, never acted on automatically.
func (m *TradeManager) reconcileLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopC:
			return
		case <-ticker.C:
			m.reconcile(ctx)
		}
	}
}

func (m *TradeManager) reconcile(ctx context.Context) {
	if !m.breaker.CanExecute() {
		return
	}
	positions, err := m.adapter.GetPositions(ctx)
	if err != nil {
		m.breaker.RecordFailure()
		m.logger.Warn("reconcile: get positions failed", zap.Error(err))
		return
	}
	m.breaker.RecordSuccess()

	held := make(map[string]int, len(positions))
	for _, p := range positions {
		held[p.Symbol] = p.Qty
	}

	trades, err := m.store.Load()
	if err != nil {
		m.logger.Error("reconcile: load trades failed", zap.Error(err))
		return
	}
	for i := range trades {
		t := &trades[i]
		if t.TradeStatus != models.TradeStatusFilled {
			continue
		}
		want := t.FilledQty - t.ExitQty
		if !t.IsLong() {
			want = -want
		}
		if got := held[t.Symbol]; got != want {
			m.logger.Warn("position mismatch",
				zap.String("symbol", t.Symbol),
				zap.Int("engine_qty", want),
				zap.Int("broker_qty", got))
			m.lifecycle.LogEvent(t.TradeID, t.Symbol, "position_mismatch",
				fmt.Sprintf("engine=%d broker=%d", want, got))
		}
	}
}

func (m *TradeManager) recordExecution(t *models.Trade) {
	if m.executions == nil {
		return
	}
	side := models.OrderSideBuy
	if !t.IsLong() {
		side = models.OrderSideSell
	}
	err := m.executions.Create(&models.Execution{
		TradeID:    t.TradeID,
		Symbol:     t.Symbol,
		Side:       side,
		EntryPrice: t.ExecutedPrice,
		ExitPrice:  t.ExitPrice,
		Qty:        t.FilledQty,
		PnL:        t.RealizedPnL,
		ClosedAt:   time.Now().UTC(),
	})
	if err != nil {
		m.logger.Error("record execution failed",
			zap.String("symbol", t.Symbol), zap.Error(err))
	}
}

// fillPnL is one exit fill's P&L contribution, signed by direction.
func fillPnL(t *models.Trade, price float64, qty int) float64 {
	if t.IsLong() {
		return (price - t.ExecutedPrice) * float64(qty)
	}
	return (t.ExecutedPrice - price) * float64(qty)
}
