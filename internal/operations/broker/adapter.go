// Package broker defines the contracts the engine needs from a
// market-execution backend and a market-data provider. Concrete
// implementations live alongside (stub) and in the binance package.
package broker

import (
	"context"

	"TradeEngine/internal/models"
)

// ContractDetails is what an adapter resolves a symbol into before an
// order can be placed.
type ContractDetails struct {
	Symbol   string
	Exchange string
	Currency string
	ConID    int64
}

// Adapter is the execution surface the engine operates against.
type Adapter interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	GetContractDetails(ctx context.Context, symbol string) (*ContractDetails, error)
	GetContractDetailsBatch(ctx context.Context, symbols []string) (map[string]*ContractDetails, error)

	// PlaceOrder submits an order and returns the broker's order id.
	PlaceOrder(ctx context.Context, order models.Order) (string, error)
	GetOrderStatus(ctx context.Context, brokerID string) (string, error)
	GetPositions(ctx context.Context) ([]models.Position, error)

	// StreamFills returns the channel of broker fill confirmations. The
	// channel is closed on disconnect.
	StreamFills() <-chan models.Fill

	GetLastPrice(ctx context.Context, symbol string) (float64, error)
	GetHistoricalData(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error)
}

// MarketDataClient is the live price surface.
type MarketDataClient interface {
	Connect(ctx context.Context) error
	Disconnect() error

	Subscribe(ctx context.Context, symbol string, onTick func(models.Tick)) error
	Unsubscribe(ctx context.Context, symbol string) error

	// Snapshot returns the current tick, erroring when the feed is dead.
	Snapshot(ctx context.Context, symbol string) (models.Tick, error)
	GetHistoricalData(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error)
}
