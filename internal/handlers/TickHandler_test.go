package handlers

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeEngine/internal/models"
	"TradeEngine/internal/operations/broker"
	"TradeEngine/internal/operations/execution"
	"TradeEngine/internal/repositories"
	"TradeEngine/internal/services/lifecycle"
	"TradeEngine/internal/services/trading"
)

func handlerTrade(symbol string) models.Trade {
	return models.Trade{
		TradeID:   "t-" + symbol,
		Symbol:    symbol,
		Direction: models.DirectionLong,
		Quantity:  50,
		EntryRules: []models.Rule{
			{PrimarySource: "price", Condition: models.ConditionGTE, Value: 220},
		},
		InitialStopRules: []models.Rule{
			{PrimarySource: "price", Condition: models.ConditionLTE, Value: 200},
		},
		OrderStatus: models.OrderStatusWorking,
		TradeStatus: models.TradeStatusPending,
		OrderType:   models.OrderTypeMarket,
		TimeInForce: models.TimeInForceDay,
	}
}

type handlerFixture struct {
	handler *TickHandler
	market  *broker.StubMarketData
	stub    *broker.StubAdapter
	store   *repositories.TradeStore
}

func newHandlerFixture(t *testing.T, heartbeat time.Duration, trades ...models.Trade) *handlerFixture {
	t.Helper()

	stub := broker.NewStubAdapter()
	require.NoError(t, stub.Connect(context.Background()))
	market := broker.NewStubMarketData()
	require.NoError(t, market.Connect(context.Background()))

	store := repositories.NewTradeStore(filepath.Join(t.TempDir(), "trades.json"))
	require.NoError(t, store.SaveAll(trades))

	executor := execution.NewOrderExecutor(stub, nil)
	manager := trading.NewTradeManager(trading.Deps{
		Store:     store,
		Executor:  executor,
		Adapter:   stub,
		Lifecycle: lifecycle.NewLogger("", nil, nil),
	})

	handler := NewTickHandler(market, manager, store, 16, heartbeat, nil)

	ctx, cancel := context.WithCancel(context.Background())
	executor.Start(ctx)
	manager.Start(ctx)
	require.NoError(t, handler.Start(ctx))
	t.Cleanup(func() {
		cancel()
		handler.Stop()
		manager.Stop()
		executor.Stop()
	})

	return &handlerFixture{handler: handler, market: market, stub: stub, store: store}
}

func (f *handlerFixture) orderStatus(t *testing.T, symbol string) models.OrderStatus {
	t.Helper()
	trade, err := f.store.FindBySymbol(symbol)
	require.NoError(t, err)
	return trade.OrderStatus
}

func TestHandlerSubscribesActiveSymbols(t *testing.T) {
	f := newHandlerFixture(t, time.Hour, handlerTrade("AAPL"), handlerTrade("MSFT"))

	assert.True(t, f.market.Subscribed("AAPL"))
	assert.True(t, f.market.Subscribed("MSFT"))
}

func TestHandlerSkipsTerminalAndEditingTrades(t *testing.T) {
	closed := handlerTrade("AAPL")
	closed.OrderStatus = models.OrderStatusInactive
	closed.TradeStatus = models.TradeStatusClosed

	editing := handlerTrade("MSFT")
	editing.OrderStatus = models.OrderStatusDraft
	editing.TradeStatus = models.TradeStatusBlank
	editing.Editing = true

	f := newHandlerFixture(t, time.Hour, closed, editing)

	assert.False(t, f.market.Subscribed("AAPL"))
	assert.False(t, f.market.Subscribed("MSFT"))
}

func TestHandlerFeedsTicksToManager(t *testing.T) {
	f := newHandlerFixture(t, time.Hour, handlerTrade("AAPL"))

	f.market.PushTick("AAPL", 215)
	f.market.PushTick("AAPL", 220)

	require.Eventually(t, func() bool {
		return f.orderStatus(t, "AAPL") == models.OrderStatusEntryOrderSubmitted
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, f.stub.PlacedOrders(), 1)
}

func TestHandlerSkipsInvalidPrices(t *testing.T) {
	f := newHandlerFixture(t, time.Hour, handlerTrade("AAPL"))

	f.market.PushTick("AAPL", math.NaN())
	f.market.PushTick("AAPL", -5)
	f.market.PushTick("AAPL", 0)

	// The bad ticks never reach evaluation; a good one still does.
	f.market.PushTick("AAPL", 220)
	require.Eventually(t, func() bool {
		return f.orderStatus(t, "AAPL") == models.OrderStatusEntryOrderSubmitted
	}, time.Second, 5*time.Millisecond)

	window := f.handler.Window("AAPL")
	assert.Equal(t, 1, window.Len())
}

func TestHandlerSeedsWindowFromHistory(t *testing.T) {
	stub := broker.NewStubAdapter()
	require.NoError(t, stub.Connect(context.Background()))
	market := broker.NewStubMarketData()
	require.NoError(t, market.Connect(context.Background()))

	bars := make([]models.Bar, 5)
	for i := range bars {
		bars[i] = models.Bar{Symbol: "AAPL", Close: float64(100 + i)}
	}
	market.SetBars("AAPL", bars)

	store := repositories.NewTradeStore(filepath.Join(t.TempDir(), "trades.json"))
	trade := handlerTrade("AAPL")
	trade.Lookback = 5
	require.NoError(t, store.SaveAll([]models.Trade{trade}))

	executor := execution.NewOrderExecutor(stub, nil)
	manager := trading.NewTradeManager(trading.Deps{
		Store:     store,
		Executor:  executor,
		Adapter:   stub,
		Lifecycle: lifecycle.NewLogger("", nil, nil),
	})
	handler := NewTickHandler(market, manager, store, 16, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	executor.Start(ctx)
	require.NoError(t, handler.Start(ctx))
	t.Cleanup(func() {
		cancel()
		handler.Stop()
		manager.Stop()
		executor.Stop()
	})

	window := handler.Window("AAPL")
	require.NotNil(t, window)
	assert.Equal(t, []float64{100, 101, 102, 103, 104}, window.Window())
}

func TestHandlerWindowCoversRuleLookback(t *testing.T) {
	stub := broker.NewStubAdapter()
	require.NoError(t, stub.Connect(context.Background()))
	market := broker.NewStubMarketData()
	require.NoError(t, market.Connect(context.Background()))

	bars := make([]models.Bar, 40)
	for i := range bars {
		bars[i] = models.Bar{Symbol: "AAPL", Close: float64(100 + i)}
	}
	market.SetBars("AAPL", bars)

	store := repositories.NewTradeStore(filepath.Join(t.TempDir(), "trades.json"))
	trade := handlerTrade("AAPL")
	trade.Lookback = 5
	trade.TrailingStopRules = []models.Rule{
		{Indicator: models.IndicatorSMA, Parameters: models.RuleParams{Lookback: 30}},
	}
	require.NoError(t, store.SaveAll([]models.Trade{trade}))

	executor := execution.NewOrderExecutor(stub, nil)
	manager := trading.NewTradeManager(trading.Deps{
		Store:     store,
		Executor:  executor,
		Adapter:   stub,
		Lifecycle: lifecycle.NewLogger("", nil, nil),
	})
	handler := NewTickHandler(market, manager, store, 16, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	executor.Start(ctx)
	require.NoError(t, handler.Start(ctx))
	t.Cleanup(func() {
		cancel()
		handler.Stop()
		manager.Stop()
		executor.Stop()
	})

	// The window must hold enough history for the trailing rule, not
	// just the trade's own lookback.
	window := handler.Window("AAPL")
	require.NotNil(t, window)
	assert.Equal(t, 30, window.Len())
}

func TestHandlerHeartbeatSurvivesDeadFeed(t *testing.T) {
	f := newHandlerFixture(t, 20*time.Millisecond, handlerTrade("AAPL"))

	f.market.PushTick("AAPL", 100)
	f.market.SetFailSnapshot("AAPL", true)
	time.Sleep(80 * time.Millisecond)

	// The feed stays subscribed and keeps delivering after recovery.
	f.market.SetFailSnapshot("AAPL", false)
	assert.True(t, f.market.Subscribed("AAPL"))

	f.market.PushTick("AAPL", 220)
	require.Eventually(t, func() bool {
		return f.orderStatus(t, "AAPL") == models.OrderStatusEntryOrderSubmitted
	}, time.Second, 5*time.Millisecond)
}

func TestHandlerTrackIsIdempotent(t *testing.T) {
	f := newHandlerFixture(t, time.Hour, handlerTrade("AAPL"))

	w1 := f.handler.Window("AAPL")
	require.NoError(t, f.handler.Track(context.Background(), "AAPL", 20))
	assert.Same(t, w1, f.handler.Window("AAPL"))
}
