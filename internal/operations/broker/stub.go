package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"TradeEngine/internal/models"
)

// ErrNotConnected is returned by stub operations before Connect.
var ErrNotConnected = errors.New("broker not connected")

// StubAdapter is the in-memory paper broker used by tests and paper
// mode: orders are accepted and tracked, fills are injected by the test
// or simulator and delivered on the fill channel.
type StubAdapter struct {
	mu        sync.Mutex
	connected bool
	prices    map[string]float64
	bars      map[string][]models.Bar
	orders    map[string]models.Order
	positions []models.Position
	fills     chan models.Fill

	// FailNextOrder makes the next PlaceOrder return an error. Test hook.
	FailNextOrder bool
}

// NewStubAdapter creates a paper broker.
func NewStubAdapter() *StubAdapter {
	return &StubAdapter{
		prices: make(map[string]float64),
		bars:   make(map[string][]models.Bar),
		orders: make(map[string]models.Order),
		fills:  make(chan models.Fill, 64),
	}
}

func (s *StubAdapter) Name() string { return "stub" }

func (s *StubAdapter) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *StubAdapter) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *StubAdapter) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *StubAdapter) GetContractDetails(ctx context.Context, symbol string) (*ContractDetails, error) {
	if !s.IsConnected() {
		return nil, ErrNotConnected
	}
	return &ContractDetails{Symbol: symbol, Exchange: "SMART", Currency: "USD"}, nil
}

func (s *StubAdapter) GetContractDetailsBatch(ctx context.Context, symbols []string) (map[string]*ContractDetails, error) {
	out := make(map[string]*ContractDetails, len(symbols))
	for _, sym := range symbols {
		cd, err := s.GetContractDetails(ctx, sym)
		if err != nil {
			return nil, err
		}
		out[sym] = cd
	}
	return out, nil
}

func (s *StubAdapter) PlaceOrder(ctx context.Context, order models.Order) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return "", ErrNotConnected
	}
	if s.FailNextOrder {
		s.FailNextOrder = false
		return "", errors.New("order rejected by stub")
	}
	brokerID := uuid.NewString()
	s.orders[brokerID] = order
	return brokerID, nil
}

func (s *StubAdapter) GetOrderStatus(ctx context.Context, brokerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[brokerID]; !ok {
		return "", fmt.Errorf("unknown order %s", brokerID)
	}
	return "Submitted", nil
}

func (s *StubAdapter) GetPositions(ctx context.Context) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	out := make([]models.Position, len(s.positions))
	copy(out, s.positions)
	return out, nil
}

func (s *StubAdapter) StreamFills() <-chan models.Fill {
	return s.fills
}

func (s *StubAdapter) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return price, nil
}

func (s *StubAdapter) GetHistoricalData(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bars[symbol], nil
}

// SetPrice scripts the last price for a symbol.
func (s *StubAdapter) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// SetBars scripts historical bars for a symbol.
func (s *StubAdapter) SetBars(symbol string, bars []models.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[symbol] = bars
}

// SetPositions scripts broker-reported positions.
func (s *StubAdapter) SetPositions(positions []models.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = positions
}

// InjectFill delivers a fill for a previously placed order.
func (s *StubAdapter) InjectFill(brokerID string, price float64, qty int) {
	s.mu.Lock()
	order, ok := s.orders[brokerID]
	s.mu.Unlock()
	if !ok {
		order = models.Order{}
	}
	s.fills <- models.Fill{
		BrokerID: brokerID,
		Symbol:   order.Symbol,
		Qty:      qty,
		Price:    price,
		TS:       time.Now().UTC(),
		LocalID:  order.LocalID,
	}
}

// PlacedOrders returns a copy of all orders placed so far, keyed by
// broker id.
func (s *StubAdapter) PlacedOrders() map[string]models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.Order, len(s.orders))
	for k, v := range s.orders {
		out[k] = v
	}
	return out
}

// StubMarketData is the scripted market-data client: ticks are pushed by
// the test or simulator and fanned out to subscribers.
type StubMarketData struct {
	mu          sync.Mutex
	connected   bool
	subscribers map[string]func(models.Tick)
	lastTick    map[string]models.Tick
	bars        map[string][]models.Bar

	// FailSnapshot makes Snapshot error for the named symbol. Test hook
	// for the feed heartbeat.
	FailSnapshot map[string]bool
}

// NewStubMarketData creates a scripted market-data client.
func NewStubMarketData() *StubMarketData {
	return &StubMarketData{
		subscribers:  make(map[string]func(models.Tick)),
		lastTick:     make(map[string]models.Tick),
		bars:         make(map[string][]models.Bar),
		FailSnapshot: make(map[string]bool),
	}
}

func (m *StubMarketData) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *StubMarketData) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *StubMarketData) Subscribe(ctx context.Context, symbol string, onTick func(models.Tick)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.subscribers[symbol] = onTick
	return nil
}

func (m *StubMarketData) Unsubscribe(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, symbol)
	return nil
}

func (m *StubMarketData) Snapshot(ctx context.Context, symbol string) (models.Tick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSnapshot[symbol] {
		return models.Tick{}, fmt.Errorf("feed down for %s", symbol)
	}
	tick, ok := m.lastTick[symbol]
	if !ok {
		return models.Tick{}, fmt.Errorf("no tick for %s", symbol)
	}
	return tick, nil
}

func (m *StubMarketData) GetHistoricalData(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bars[symbol], nil
}

// SetBars scripts historical bars for a symbol.
func (m *StubMarketData) SetBars(symbol string, bars []models.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[symbol] = bars
}

// SetFailSnapshot scripts a dead feed for a symbol.
func (m *StubMarketData) SetFailSnapshot(symbol string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailSnapshot[symbol] = fail
}

// PushTick delivers a tick to the symbol's subscriber, if any.
func (m *StubMarketData) PushTick(symbol string, price float64) {
	m.mu.Lock()
	tick := models.Tick{Symbol: symbol, Price: price, TS: time.Now().UTC()}
	m.lastTick[symbol] = tick
	onTick := m.subscribers[symbol]
	m.mu.Unlock()

	if onTick != nil {
		onTick(tick)
	}
}

// Subscribed reports whether a subscriber is registered for symbol.
func (m *StubMarketData) Subscribed(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subscribers[symbol]
	return ok
}
