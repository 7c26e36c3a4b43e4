package handlers

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"TradeEngine/internal/models"
	"TradeEngine/internal/operations/broker"
	"TradeEngine/internal/repositories"
	"TradeEngine/internal/services/indicators"
	"TradeEngine/internal/services/trading"
)

const (
	defaultQueueSize     = 256
	defaultWindowLength  = 20
	defaultHeartbeat     = 30 * time.Second
	maxReconnectBackoff  = 60 * time.Second
	baseReconnectBackoff = time.Second
)

// TickHandler subscribes to market data for every active trade and
// feeds ticks to the trade manager. Ticks for the same symbol are
// processed strictly in order on a per-symbol queue; different symbols
// run concurrently.
type TickHandler struct {
	market  broker.MarketDataClient
	manager *trading.TradeManager
	store   *repositories.TradeStore
	logger  *zap.Logger

	queueSize int
	heartbeat time.Duration

	mu      sync.Mutex
	windows map[string]*indicators.RollingWindow
	queues  map[string]chan models.Tick

	stopC chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewTickHandler creates a handler. Zero queueSize and heartbeat fall
// back to defaults.
func NewTickHandler(market broker.MarketDataClient, manager *trading.TradeManager, store *repositories.TradeStore, queueSize int, heartbeat time.Duration, logger *zap.Logger) *TickHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &TickHandler{
		market:    market,
		manager:   manager,
		store:     store,
		logger:    logger,
		queueSize: queueSize,
		heartbeat: heartbeat,
		windows:   make(map[string]*indicators.RollingWindow),
		queues:    make(map[string]chan models.Tick),
		stopC:     make(chan struct{}),
	}
}

// Start seeds rolling windows from history, subscribes every active
// symbol, and launches the feed heartbeat.
func (h *TickHandler) Start(ctx context.Context) error {
	trades, err := h.store.Load()
	if err != nil {
		return err
	}

	for i := range trades {
		trade := &trades[i]
		if trade.IsTerminal() || trade.Editing {
			continue
		}
		if err := h.Track(ctx, trade.Symbol, trade.WindowLookback()); err != nil {
			h.logger.Error("subscribe failed",
				zap.String("symbol", trade.Symbol), zap.Error(err))
		}
	}

	h.wg.Add(1)
	go h.heartbeatLoop(ctx)
	return nil
}

// Track subscribes one symbol, seeding its window from historical
// closes. Safe to call for an already tracked symbol.
func (h *TickHandler) Track(ctx context.Context, symbol string, lookback int) error {
	if lookback <= 0 {
		lookback = defaultWindowLength
	}

	h.mu.Lock()
	if _, ok := h.queues[symbol]; ok {
		h.mu.Unlock()
		return nil
	}
	window := indicators.NewRollingWindow(lookback)
	queue := make(chan models.Tick, h.queueSize)
	h.windows[symbol] = window
	h.queues[symbol] = queue
	h.mu.Unlock()

	if bars, err := h.market.GetHistoricalData(ctx, symbol, lookback); err != nil {
		h.logger.Warn("window seed failed, starting cold",
			zap.String("symbol", symbol), zap.Error(err))
	} else {
		closes := make([]float64, 0, len(bars))
		for _, b := range bars {
			closes = append(closes, b.Close)
		}
		window.Preload(closes)
	}

	h.wg.Add(1)
	go h.drainQueue(ctx, symbol, queue, window)

	return h.market.Subscribe(ctx, symbol, func(tick models.Tick) {
		select {
		case queue <- tick:
		default:
			h.logger.Warn("tick queue full, dropping tick",
				zap.String("symbol", symbol))
		}
	})
}

// Window resolves the rolling window for a symbol, for use as the
// manager's WindowProvider.
func (h *TickHandler) Window(symbol string) *indicators.RollingWindow {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.windows[symbol]
}

// Stop unsubscribes everything and waits for the workers.
func (h *TickHandler) Stop() {
	h.once.Do(func() {
		close(h.stopC)
		h.mu.Lock()
		for symbol := range h.queues {
			_ = h.market.Unsubscribe(context.Background(), symbol)
		}
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// drainQueue processes one symbol's ticks in arrival order.
func (h *TickHandler) drainQueue(ctx context.Context, symbol string, queue chan models.Tick, window *indicators.RollingWindow) {
	defer h.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopC:
			return
		case tick := <-queue:
			if !validPrice(tick.Price) {
				h.logger.Warn("skipping invalid tick",
					zap.String("symbol", symbol),
					zap.Float64("price", tick.Price))
				continue
			}
			window.Append(tick.Price)
			h.manager.EvaluateOnTick(ctx, tick, window)
		}
	}
}

// heartbeatLoop probes the feed for every tracked symbol. A failed
// probe resubscribes the symbol; repeated failures back off with
// doubling waits capped at a minute.
func (h *TickHandler) heartbeatLoop(ctx context.Context) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	backoff := baseReconnectBackoff

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopC:
			return
		case <-ticker.C:
			if h.probeAll(ctx) {
				backoff = baseReconnectBackoff
				continue
			}

			h.logger.Warn("feed heartbeat failed, reconnecting",
				zap.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-h.stopC:
				return
			case <-ctx.Done():
				return
			}
			if err := h.market.Connect(ctx); err != nil {
				h.logger.Error("feed reconnect failed", zap.Error(err))
			}
			backoff *= 2
			if backoff > maxReconnectBackoff {
				backoff = maxReconnectBackoff
			}
		}
	}
}

// probeAll snapshots every tracked symbol, resubscribing the dead ones.
// It reports whether all probes passed.
func (h *TickHandler) probeAll(ctx context.Context) bool {
	h.mu.Lock()
	symbols := make([]string, 0, len(h.queues))
	for symbol := range h.queues {
		symbols = append(symbols, symbol)
	}
	h.mu.Unlock()

	healthy := true
	for _, symbol := range symbols {
		if _, err := h.market.Snapshot(ctx, symbol); err == nil {
			continue
		}
		healthy = false
		h.logger.Warn("feed dead for symbol, resubscribing",
			zap.String("symbol", symbol))

		h.mu.Lock()
		queue := h.queues[symbol]
		h.mu.Unlock()
		if queue == nil {
			continue
		}

		_ = h.market.Unsubscribe(ctx, symbol)
		err := h.market.Subscribe(ctx, symbol, func(tick models.Tick) {
			select {
			case queue <- tick:
			default:
				h.logger.Warn("tick queue full, dropping tick",
					zap.String("symbol", symbol))
			}
		})
		if err != nil {
			h.logger.Error("resubscribe failed",
				zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return healthy
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}
