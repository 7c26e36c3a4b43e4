package config

import "time"

type Config struct {
	Exchange ExchangeConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Risk     RiskConfig
}

type ExchangeConfig struct {
	// Mode selects the broker backend: "paper" or "binance".
	Mode      string
	APIKey    string
	SecretKey string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// EngineConfig holds the engine's runtime knobs.
type EngineConfig struct {
	TradeFile     string
	AuditFile     string
	MetricsAddr   string
	TickQueueSize int

	HeartbeatInterval time.Duration
	ReconcileInterval time.Duration

	ADRLookback int
	ATRLookback int

	MaxRetries   int
	RetryDelay   time.Duration
	BreakerLimit int
	BreakerReset time.Duration
}

// RiskConfig feeds the portfolio gate.
type RiskConfig struct {
	AvailableBuyingPower float64
	PortfolioValue       float64
	MaxLossPerTrade      float64
	MaxPortfolioLoss     float64
	DefaultRiskPct       float64
	MaxPositionSize      int
	MaxConcentration     float64
	MarginRequirement    float64
}
