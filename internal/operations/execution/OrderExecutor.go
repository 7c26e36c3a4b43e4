// Package execution places broker orders for trades and routes fill
// confirmations back to the engine as typed events.
package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"TradeEngine/internal/metrics"
	"TradeEngine/internal/models"
	"TradeEngine/internal/operations/broker"
)

// FillEvent is what the executor emits when a tracked broker order
// fills. Exit distinguishes contingent-exit fills from entry fills.
type FillEvent struct {
	Symbol  string
	TradeID string
	Price   float64
	Qty     int
	Exit    bool
}

type pendingOrder struct {
	symbol  string
	tradeID string
	exit    bool
}

// OrderExecutor submits market orders through a broker adapter and
// tracks them by broker id until the matching fill arrives. Each trade
// has at most one outstanding order; the tracking entry is removed the
// moment its fill is routed.
type OrderExecutor struct {
	adapter broker.Adapter
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]pendingOrder // broker id -> order context

	events chan FillEvent
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewOrderExecutor creates an executor over the adapter. Start must be
// called to begin draining the fill stream.
func NewOrderExecutor(adapter broker.Adapter, logger *zap.Logger) *OrderExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderExecutor{
		adapter: adapter,
		logger:  logger,
		pending: make(map[string]pendingOrder),
		events:  make(chan FillEvent, 64),
		stop:    make(chan struct{}),
	}
}

// Start launches the fill drain loop.
func (e *OrderExecutor) Start(ctx context.Context) {
	e.wg.Add(1)
	go e.drainFills(ctx)
}

// Events returns the channel of routed fill events. The engine owns the
// only consumer.
func (e *OrderExecutor) Events() <-chan FillEvent {
	return e.events
}

// PlaceEntry submits the entry market order for a trade and returns the
// broker id now tracked for it.
func (e *OrderExecutor) PlaceEntry(ctx context.Context, trade *models.Trade) (string, error) {
	side := models.OrderSideBuy
	if !trade.IsLong() {
		side = models.OrderSideSell
	}
	return e.place(ctx, trade, side, trade.Quantity, false)
}

// PlaceExit submits a closing market order for qty units of the trade's
// position.
func (e *OrderExecutor) PlaceExit(ctx context.Context, trade *models.Trade, qty int) (string, error) {
	side := models.OrderSideSell
	if !trade.IsLong() {
		side = models.OrderSideBuy
	}
	return e.place(ctx, trade, side, qty, true)
}

func (e *OrderExecutor) place(ctx context.Context, trade *models.Trade, side string, qty int, exit bool) (string, error) {
	if qty <= 0 {
		return "", fmt.Errorf("invalid order quantity %d for %s", qty, trade.Symbol)
	}

	order := models.Order{
		Symbol:    trade.Symbol,
		Side:      side,
		Qty:       qty,
		OrderType: trade.OrderType,
		TIF:       trade.TimeInForce,
		LocalID:   uuid.NewString(),
	}
	if order.OrderType == "" {
		order.OrderType = models.OrderTypeMarket
	}
	if order.TIF == "" {
		order.TIF = models.TimeInForceDay
	}

	brokerID, err := e.adapter.PlaceOrder(ctx, order)
	if err != nil {
		return "", fmt.Errorf("place %s order for %s: %w", order.Side, trade.Symbol, err)
	}

	e.mu.Lock()
	e.pending[brokerID] = pendingOrder{symbol: trade.Symbol, tradeID: trade.TradeID, exit: exit}
	e.mu.Unlock()

	kind := "entry"
	if exit {
		kind = "exit"
	}
	metrics.OrdersPlaced.WithLabelValues(kind, order.Side).Inc()
	e.logger.Info("order placed",
		zap.String("symbol", trade.Symbol),
		zap.String("side", order.Side),
		zap.Int("qty", qty),
		zap.String("kind", kind),
		zap.String("broker_id", brokerID),
		zap.String("local_id", order.LocalID))

	return brokerID, nil
}

// Outstanding reports whether the trade still has a tracked broker
// order.
func (e *OrderExecutor) Outstanding(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.pending {
		if p.symbol == symbol {
			return true
		}
	}
	return false
}

// Forget drops tracking for a broker id, used when an order is
// cancelled out of band.
func (e *OrderExecutor) Forget(brokerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, brokerID)
}

// Stop shuts the drain loop down and closes the event channel. Safe to
// call more than once.
func (e *OrderExecutor) Stop() {
	e.once.Do(func() {
		close(e.stop)
		e.wg.Wait()
		close(e.events)
	})
}

// drainFills consumes the adapter's fill stream until Stop. A fill for
// an untracked broker id is logged and dropped, a malformed fill never
// stops the loop.
func (e *OrderExecutor) drainFills(ctx context.Context) {
	defer e.wg.Done()
	fills := e.adapter.StreamFills()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case fill, ok := <-fills:
			if !ok {
				return
			}
			e.routeFill(fill)
		}
	}
}

func (e *OrderExecutor) routeFill(fill models.Fill) {
	if fill.BrokerID == "" || fill.Qty <= 0 || fill.Price <= 0 {
		e.logger.Warn("dropping malformed fill",
			zap.String("broker_id", fill.BrokerID),
			zap.Int("qty", fill.Qty),
			zap.Float64("price", fill.Price))
		return
	}

	e.mu.Lock()
	p, ok := e.pending[fill.BrokerID]
	if ok {
		delete(e.pending, fill.BrokerID)
	}
	e.mu.Unlock()

	if !ok {
		e.logger.Warn("fill for untracked order",
			zap.String("broker_id", fill.BrokerID),
			zap.String("symbol", fill.Symbol))
		return
	}

	kind := "entry"
	if p.exit {
		kind = "exit"
	}
	metrics.FillsRouted.WithLabelValues(kind).Inc()
	e.logger.Info("fill routed",
		zap.String("symbol", p.symbol),
		zap.String("kind", kind),
		zap.Float64("price", fill.Price),
		zap.Int("qty", fill.Qty))

	select {
	case e.events <- FillEvent{Symbol: p.symbol, TradeID: p.tradeID, Price: fill.Price, Qty: fill.Qty, Exit: p.exit}:
	case <-e.stop:
	}
}
