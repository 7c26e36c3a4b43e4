package models

import "time"

// Order sides and broker order parameters.
const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"

	OrderTypeMarket = "MARKET"

	TimeInForceDay = "DAY"
	TimeInForceGTC = "GTC"
)

// Order is the broker-neutral order the executor submits. LocalID is
// the engine-generated client order id, echoed back on the fill.
type Order struct {
	Symbol    string   `json:"symbol"`
	Side      string   `json:"side"`
	Qty       int      `json:"qty"`
	OrderType string   `json:"order_type"`
	TIF       string   `json:"tif"`
	Price     *float64 `json:"price"` // nil for market orders
	LocalID   string   `json:"local_id,omitempty"`
}

// Fill is a broker confirmation that an order executed.
type Fill struct {
	BrokerID string    `json:"broker_id"`
	Symbol   string    `json:"symbol"`
	Qty      int       `json:"qty"`
	Price    float64   `json:"price"`
	TS       time.Time `json:"ts"`
	LocalID  string    `json:"local_id"`
}

// Position is a broker-reported holding, used for reconciliation.
type Position struct {
	Symbol   string  `json:"symbol"`
	Qty      int     `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
}

// Tick is a single market update.
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	TS     time.Time `json:"ts"`
}

// Bar is one historical OHLC bar, the input to ADR/ATR and to rolling
// window seeding.
type Bar struct {
	Symbol   string    `json:"symbol"`
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}
