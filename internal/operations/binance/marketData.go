package binance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"

	"TradeEngine/internal/models"
)

// MarketData implements broker.MarketDataClient over the Binance
// aggregate-trade websocket streams, one stream per subscribed symbol.
type MarketData struct {
	adapter *Adapter
	logger  *zap.Logger

	mu      sync.Mutex
	streams map[string]chan struct{} // symbol -> stopC
	last    map[string]models.Tick
}

// NewMarketData creates a market-data client sharing the adapter's REST
// client for snapshots and history.
func NewMarketData(adapter *Adapter, logger *zap.Logger) *MarketData {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketData{
		adapter: adapter,
		logger:  logger,
		streams: make(map[string]chan struct{}),
		last:    make(map[string]models.Tick),
	}
}

func (m *MarketData) Connect(ctx context.Context) error {
	if !m.adapter.IsConnected() {
		return m.adapter.Connect(ctx)
	}
	return nil
}

func (m *MarketData) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for symbol, stopC := range m.streams {
		close(stopC)
		delete(m.streams, symbol)
	}
	return nil
}

// Subscribe opens an aggregate-trade stream for symbol. A second
// subscribe for the same symbol replaces the first.
func (m *MarketData) Subscribe(ctx context.Context, symbol string, onTick func(models.Tick)) error {
	m.mu.Lock()
	if old, ok := m.streams[symbol]; ok {
		close(old)
		delete(m.streams, symbol)
	}
	m.mu.Unlock()

	handler := func(event *futures.WsAggTradeEvent) {
		tick := models.Tick{
			Symbol: event.Symbol,
			Price:  parseFloat(event.Price),
			TS:     time.UnixMilli(event.Time),
		}
		m.mu.Lock()
		m.last[symbol] = tick
		m.mu.Unlock()
		onTick(tick)
	}
	errHandler := func(err error) {
		m.logger.Error("agg trade stream error",
			zap.String("symbol", symbol), zap.Error(err))
	}

	_, stopC, err := futures.WsAggTradeServe(symbol, handler, errHandler)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", symbol, err)
	}

	m.mu.Lock()
	m.streams[symbol] = stopC
	m.mu.Unlock()

	m.logger.Info("subscribed to market data", zap.String("symbol", symbol))
	return nil
}

func (m *MarketData) Unsubscribe(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stopC, ok := m.streams[symbol]; ok {
		close(stopC)
		delete(m.streams, symbol)
	}
	return nil
}

// Snapshot hits the REST price endpoint so a dead websocket still
// surfaces as an error here.
func (m *MarketData) Snapshot(ctx context.Context, symbol string) (models.Tick, error) {
	price, err := m.adapter.GetLastPrice(ctx, symbol)
	if err != nil {
		return models.Tick{}, err
	}
	return models.Tick{Symbol: symbol, Price: price, TS: time.Now().UTC()}, nil
}

func (m *MarketData) GetHistoricalData(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error) {
	return m.adapter.GetHistoricalData(ctx, symbol, lookbackDays)
}
