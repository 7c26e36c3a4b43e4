package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"TradeEngine/config"
	"TradeEngine/internal/handlers"
	"TradeEngine/internal/models"
	"TradeEngine/internal/operations/binance"
	"TradeEngine/internal/operations/broker"
	"TradeEngine/internal/operations/execution"
	"TradeEngine/internal/repositories"
	"TradeEngine/internal/services/evaluators"
	"TradeEngine/internal/services/lifecycle"
	"TradeEngine/internal/services/resilience"
	"TradeEngine/internal/services/trading"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database is optional: without it the audit sink and execution
	// ledger are skipped and lifecycle history lives in the JSONL file.
	var auditRepo *repositories.AuditRepository
	var executionRepo *repositories.ExecutionRepository
	if cfg.Database.Host != "" {
		db := setupDatabase(cfg.Database)
		auditRepo = repositories.NewAuditRepository(db)
		executionRepo = repositories.NewExecutionRepository(db)
	}

	var sink lifecycle.Sink
	if auditRepo != nil {
		sink = auditRepo
	}
	lifecycleLog := lifecycle.NewLogger(cfg.Engine.AuditFile, sink, logger)

	adapter, market := setupBroker(cfg, logger)
	if err := adapter.Connect(ctx); err != nil {
		log.Fatal("Failed to connect broker:", err)
	}
	defer adapter.Disconnect()
	if err := market.Connect(ctx); err != nil {
		log.Fatal("Failed to connect market data:", err)
	}
	defer market.Disconnect()

	store := repositories.NewTradeStore(cfg.Engine.TradeFile)
	executor := execution.NewOrderExecutor(adapter, logger)

	manager := trading.NewTradeManager(trading.Deps{
		Store:      store,
		Executor:   executor,
		Adapter:    adapter,
		Lifecycle:  lifecycleLog,
		Executions: executionRepo,
		Portfolio:  staticPortfolio(cfg.Risk, adapter),
		ErrorHandler: resilience.NewErrorHandler(
			cfg.Engine.MaxRetries, cfg.Engine.RetryDelay, logger),
		Breaker: resilience.NewCircuitBreaker(
			"broker", cfg.Engine.BreakerLimit, cfg.Engine.BreakerReset, logger),
		ReconcileInterval: cfg.Engine.ReconcileInterval,
		Logger:            logger,
	})

	tickHandler := handlers.NewTickHandler(market, manager, store,
		cfg.Engine.TickQueueSize, cfg.Engine.HeartbeatInterval, logger)

	manager.PreloadVolatility(ctx, cfg.Engine.ADRLookback, cfg.Engine.ATRLookback)
	executor.Start(ctx)
	manager.Start(ctx)
	if err := tickHandler.Start(ctx); err != nil {
		log.Fatal("Failed to start tick handler:", err)
	}

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.Engine.MetricsAddr, nil); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("engine started",
		zap.String("mode", cfg.Exchange.Mode),
		zap.String("trade_file", cfg.Engine.TradeFile))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down")
	cancel()
	tickHandler.Stop()
	manager.Stop()
	executor.Stop()
	logger.Info("shutdown complete")
}

// setupBroker selects the paper stub or the live Binance backend.
func setupBroker(cfg *config.Config, logger *zap.Logger) (broker.Adapter, broker.MarketDataClient) {
	if cfg.Exchange.Mode == "binance" {
		adapter := binance.NewAdapter(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, logger)
		return adapter, binance.NewMarketData(adapter, logger)
	}
	return broker.NewStubAdapter(), broker.NewStubMarketData()
}

// staticPortfolio builds the portfolio gate inputs from configured risk
// caps plus live broker positions.
func staticPortfolio(risk config.RiskConfig, adapter broker.Adapter) trading.PortfolioProvider {
	return func(ctx context.Context, trade *models.Trade, price float64) (evaluators.PortfolioData, error) {
		positions, err := adapter.GetPositions(ctx)
		if err != nil {
			return evaluators.PortfolioData{}, err
		}
		held := make(map[string]int, len(positions))
		for _, p := range positions {
			held[p.Symbol] = p.Qty
		}
		return evaluators.PortfolioData{
			AvailableBuyingPower: risk.AvailableBuyingPower,
			PortfolioValue:       risk.PortfolioValue,
			CurrentPrice:         price,
			MarginRequirement:    risk.MarginRequirement,
			MaxLossPerTrade:      risk.MaxLossPerTrade,
			MaxPortfolioLoss:     risk.MaxPortfolioLoss,
			DefaultRiskPct:       risk.DefaultRiskPct,
			MaxPositionSize:      risk.MaxPositionSize,
			MaxConcentration:     risk.MaxConcentration,
			Positions:            held,
		}, nil
	}
}

func setupDatabase(dbConfig config.DatabaseConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&models.AuditEntry{}, &models.Execution{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	return db
}
