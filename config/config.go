package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads configuration from the environment, with .env as an
// optional overlay. Missing keys fall back to defaults suited to paper
// trading.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	return &Config{
		Exchange: ExchangeConfig{
			Mode:      envString("EXCHANGE_MODE", "paper"),
			APIKey:    os.Getenv("BINANCE_API_KEY"),
			SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     envInt("DB_PORT", 5432),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		Engine: EngineConfig{
			TradeFile:         envString("TRADE_FILE", "trades.json"),
			AuditFile:         envString("AUDIT_FILE", "lifecycle.jsonl"),
			MetricsAddr:       envString("METRICS_ADDR", ":9090"),
			TickQueueSize:     envInt("TICK_QUEUE_SIZE", 256),
			HeartbeatInterval: envDuration("HEARTBEAT_INTERVAL", 30*time.Second),
			ReconcileInterval: envDuration("RECONCILE_INTERVAL", time.Minute),
			ADRLookback:       envInt("ADR_LOOKBACK", 20),
			ATRLookback:       envInt("ATR_LOOKBACK", 14),
			MaxRetries:        envInt("MAX_RETRIES", 3),
			RetryDelay:        envDuration("RETRY_DELAY", 100*time.Millisecond),
			BreakerLimit:      envInt("BREAKER_FAILURE_THRESHOLD", 5),
			BreakerReset:      envDuration("BREAKER_RECOVERY_TIMEOUT", 30*time.Second),
		},
		Risk: RiskConfig{
			AvailableBuyingPower: envFloat("RISK_BUYING_POWER", 100_000),
			PortfolioValue:       envFloat("RISK_PORTFOLIO_VALUE", 100_000),
			MaxLossPerTrade:      envFloat("RISK_MAX_LOSS_PER_TRADE", 2_000),
			MaxPortfolioLoss:     envFloat("RISK_MAX_PORTFOLIO_LOSS", 10_000),
			DefaultRiskPct:       envFloat("RISK_DEFAULT_PCT", 0.02),
			MaxPositionSize:      envInt("RISK_MAX_POSITION_SIZE", 10_000),
			MaxConcentration:     envFloat("RISK_MAX_CONCENTRATION", 0.25),
			MarginRequirement:    envFloat("RISK_MARGIN_REQUIREMENT", 1.0),
		},
	}, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
