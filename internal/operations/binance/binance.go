package binance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"TradeEngine/internal/models"
	"TradeEngine/internal/operations/broker"
)

// ErrNotConnected is returned when an operation runs before Connect.
var ErrNotConnected = errors.New("binance adapter not connected")

const klineInterval = "1d"

// Adapter implements broker.Adapter against Binance USD-M futures.
type Adapter struct {
	client      *futures.Client
	rateLimiter *rate.Limiter
	logger      *zap.Logger
	connected   atomic.Bool

	fills     chan models.Fill
	stopC     chan struct{}
	listenKey string
}

// NewAdapter creates a Binance-backed adapter with a shared HTTP client
// and a 10 req/s rate limiter.
func NewAdapter(apiKey, secretKey string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Timeout: time.Second * 10,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	futuresClient := futures.NewClient(apiKey, secretKey)
	futuresClient.HTTPClient = httpClient

	return &Adapter{
		client:      futuresClient,
		rateLimiter: rate.NewLimiter(rate.Limit(10), 20),
		logger:      logger,
		fills:       make(chan models.Fill, 64),
	}
}

func (a *Adapter) Name() string { return "binance" }

// Connect verifies connectivity and starts the user-data stream that
// feeds the fill channel.
func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.client.NewPingService().Do(ctx); err != nil {
		return fmt.Errorf("connect to binance: %w", err)
	}

	listenKey, err := a.client.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return fmt.Errorf("start user stream: %w", err)
	}
	a.listenKey = listenKey

	doneC, stopC, err := futures.WsUserDataServe(listenKey, a.onUserData, func(err error) {
		a.logger.Error("user data stream error", zap.Error(err))
	})
	if err != nil {
		return fmt.Errorf("subscribe user stream: %w", err)
	}
	a.stopC = stopC

	go a.keepAlive(ctx, doneC)

	a.connected.Store(true)
	a.logger.Info("connected to binance")
	return nil
}

func (a *Adapter) Disconnect() error {
	a.connected.Store(false)
	if a.stopC != nil {
		close(a.stopC)
		a.stopC = nil
	}
	a.logger.Info("disconnected from binance")
	return nil
}

func (a *Adapter) IsConnected() bool {
	return a.connected.Load()
}

func (a *Adapter) GetContractDetails(ctx context.Context, symbol string) (*broker.ContractDetails, error) {
	batch, err := a.GetContractDetailsBatch(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	cd, ok := batch[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %s not listed", symbol)
	}
	return cd, nil
}

func (a *Adapter) GetContractDetailsBatch(ctx context.Context, symbols []string) (map[string]*broker.ContractDetails, error) {
	if !a.IsConnected() {
		return nil, ErrNotConnected
	}
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	info, err := a.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}

	out := make(map[string]*broker.ContractDetails)
	for _, s := range info.Symbols {
		if wanted[s.Symbol] {
			out[s.Symbol] = &broker.ContractDetails{
				Symbol:   s.Symbol,
				Exchange: "BINANCE",
				Currency: s.QuoteAsset,
			}
		}
	}
	return out, nil
}

// PlaceOrder submits a market order. The broker id is "SYMBOL:orderId"
// so the status lookup can recover both parts.
func (a *Adapter) PlaceOrder(ctx context.Context, order models.Order) (string, error) {
	if !a.IsConnected() {
		return "", ErrNotConnected
	}
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	side := futures.SideTypeBuy
	if order.Side == models.OrderSideSell {
		side = futures.SideTypeSell
	}

	svc := a.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(strconv.Itoa(order.Qty))
	if order.LocalID != "" {
		svc = svc.NewClientOrderID(order.LocalID)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return "", fmt.Errorf("place order for %s: %w", order.Symbol, err)
	}

	return fmt.Sprintf("%s:%d", resp.Symbol, resp.OrderID), nil
}

func (a *Adapter) GetOrderStatus(ctx context.Context, brokerID string) (string, error) {
	if !a.IsConnected() {
		return "", ErrNotConnected
	}

	parts := strings.SplitN(brokerID, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid broker id format: %s", brokerID)
	}
	orderID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid broker id format: %s", brokerID)
	}

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}
	order, err := a.client.NewGetOrderService().
		Symbol(parts[0]).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("get order %s: %w", brokerID, err)
	}
	return string(order.Status), nil
}

func (a *Adapter) GetPositions(ctx context.Context) ([]models.Position, error) {
	if !a.IsConnected() {
		return nil, ErrNotConnected
	}
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	risks, err := a.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	var positions []models.Position
	for _, r := range risks {
		qty := parseFloat(r.PositionAmt)
		if qty == 0 {
			continue
		}
		positions = append(positions, models.Position{
			Symbol:   r.Symbol,
			Qty:      int(qty),
			AvgPrice: parseFloat(r.EntryPrice),
		})
	}
	return positions, nil
}

func (a *Adapter) StreamFills() <-chan models.Fill {
	return a.fills
}

func (a *Adapter) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	if !a.IsConnected() {
		return 0, ErrNotConnected
	}
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return 0, err
	}

	prices, err := a.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("last price for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return parseFloat(prices[0].Price), nil
}

// GetHistoricalData fetches daily bars in one-day chunks, retrying each
// chunk with exponential backoff.
func (a *Adapter) GetHistoricalData(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error) {
	if !a.IsConnected() {
		return nil, ErrNotConnected
	}

	endTime := time.Now()
	startTime := endTime.AddDate(0, 0, -lookbackDays)
	startMs := startTime.UnixMilli()
	endMs := endTime.UnixMilli()

	var bars []models.Bar
	chunk := (24 * time.Hour).Milliseconds()

	for currentStart := startMs; currentStart < endMs; {
		currentEnd := currentStart + chunk
		if currentEnd > endMs {
			currentEnd = endMs
		}

		klines, err := a.getKlines(ctx, symbol, currentStart, currentEnd)
		if err != nil {
			return nil, err
		}

		for _, k := range klines {
			bars = append(bars, models.Bar{
				Symbol:   symbol,
				OpenTime: time.UnixMilli(k.OpenTime),
				Open:     parseFloat(k.Open),
				High:     parseFloat(k.High),
				Low:      parseFloat(k.Low),
				Close:    parseFloat(k.Close),
				Volume:   parseFloat(k.Volume),
			})
		}
		currentStart = currentEnd
	}

	return bars, nil
}

func (a *Adapter) getKlines(ctx context.Context, symbol string, startTime, endTime int64) ([]*futures.Kline, error) {
	maxRetries := 3
	backoff := 100 * time.Millisecond

	for attempt := 0; ; attempt++ {
		if err := a.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		klines, err := a.client.NewKlinesService().
			Symbol(symbol).
			Interval(klineInterval).
			StartTime(startTime).
			EndTime(endTime).
			Do(ctx)
		if err == nil {
			return klines, nil
		}
		if attempt == maxRetries {
			return nil, err
		}

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * backoff
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// onUserData converts filled order updates into Fill events.
func (a *Adapter) onUserData(event *futures.WsUserDataEvent) {
	if event.Event != futures.UserDataEventTypeOrderTradeUpdate {
		return
	}

	update := event.OrderTradeUpdate
	if update.Status != futures.OrderStatusTypeFilled {
		return
	}

	fill := models.Fill{
		BrokerID: fmt.Sprintf("%s:%d", update.Symbol, update.ID),
		Symbol:   update.Symbol,
		Qty:      int(parseFloat(update.AccumulatedFilledQty)),
		Price:    parseFloat(update.AveragePrice),
		TS:       time.UnixMilli(event.Time),
		LocalID:  update.ClientOrderID,
	}

	select {
	case a.fills <- fill:
	default:
		a.logger.Warn("fill channel full, dropping fill",
			zap.String("broker_id", fill.BrokerID))
	}
}

// keepAlive refreshes the listen key until the stream or context ends.
func (a *Adapter) keepAlive(ctx context.Context, doneC chan struct{}) {
	ticker := time.NewTicker(25 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-doneC:
			return
		case <-ticker.C:
			if err := a.client.NewKeepaliveUserStreamService().ListenKey(a.listenKey).Do(ctx); err != nil {
				a.logger.Error("user stream keepalive failed", zap.Error(err))
			}
		}
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
