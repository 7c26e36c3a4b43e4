// Package metrics registers the engine's Prometheus instruments:
//   - engine_ticks_evaluated_total{symbol}    – ticks run through the pipeline
//   - engine_orders_total{kind,side}          – orders placed (kind: entry|exit)
//   - engine_fills_total{kind}                – fills routed (kind: entry|exit|untracked)
//   - engine_trades_closed_total{result}      – closed trades (win|loss|flat)
//   - engine_realized_pnl                     – cumulative realized P&L (gauge)
//   - engine_breaker_state{name}              – circuit breaker state (0 closed, 1 open, 2 half-open)
//   - engine_retry_failures_total{operation}  – retry-wrapped operation failures
//
// Served at /metrics from main.go.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TicksEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_ticks_evaluated_total",
			Help: "Ticks run through the evaluation pipeline",
		},
		[]string{"symbol"},
	)

	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_orders_total",
			Help: "Orders placed by kind and side",
		},
		[]string{"kind", "side"},
	)

	FillsRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_fills_total",
			Help: "Broker fills routed by kind",
		},
		[]string{"kind"},
	)

	TradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_trades_closed_total",
			Help: "Closed trades by result",
		},
		[]string{"result"},
	)

	RealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_realized_pnl",
			Help: "Cumulative realized P&L",
		},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	RetryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_retry_failures_total",
			Help: "Failures recorded by the retry handler per operation",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksEvaluated,
		OrdersPlaced,
		FillsRouted,
		TradesClosed,
		RealizedPnL,
		BreakerState,
		RetryFailures,
	)
}
