package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/internal/adapters/ai"
	"github.com/cryptoknight/knightd/internal/adapters/clickhouse"
	"github.com/cryptoknight/knightd/internal/adapters/coingecko"
	"github.com/cryptoknight/knightd/internal/adapters/config"
	"github.com/cryptoknight/knightd/internal/adapters/database"
	"github.com/cryptoknight/knightd/internal/adapters/sendgrid"
	"github.com/cryptoknight/knightd/internal/adapters/telegram"
	"github.com/cryptoknight/knightd/internal/alerts"
	"github.com/cryptoknight/knightd/internal/api"
	"github.com/cryptoknight/knightd/internal/forecast"
	"github.com/cryptoknight/knightd/internal/health"
	"github.com/cryptoknight/knightd/internal/market"
	"github.com/cryptoknight/knightd/internal/notify"
	"github.com/cryptoknight/knightd/internal/predictions"
	"github.com/cryptoknight/knightd/internal/users"
	"github.com/cryptoknight/knightd/internal/workers"
	"github.com/cryptoknight/knightd/pkg/logger"
	"github.com/cryptoknight/knightd/pkg/worker"
)

func main() {
	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	// Run application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration and initialize logger
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("CryptoKnight daemon starting...",
		zap.Strings("coins", cfg.Market.Coins),
		zap.String("currency", cfg.Market.Currency),
	)

	// Initialize database and run migrations
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize repositories
	userRepo := users.NewRepository(db.DB())
	alertRepo := alerts.NewRepository(db.DB())
	predictionRepo := predictions.NewRepository(db.DB())

	// Market gateway over the CoinGecko client
	gateway := market.NewGateway(coingecko.NewClient(&cfg.Market), &cfg.Market)

	// Forecast engine and notification channels
	forecaster := initForecaster(&cfg.Forecast)
	dispatcher := initDispatcher(cfg)

	evaluator := alerts.NewEvaluator(alertRepo, gateway, userRepo, dispatcher)

	// Optional ClickHouse observation sink
	recorder := initRecorder(ctx, cfg)
	if recorder != nil {
		defer recorder.Close()
	}

	// Start background workers
	workerGroup := startWorkers(ctx, cfg, evaluator, gateway, recorder)

	// Start public API server
	apiServer := api.NewServer(&cfg.API, gateway, forecaster, predictionRepo, alertRepo, cfg.Forecast.DefaultSymbol)
	go func() {
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", zap.Error(err))
		}
	}()

	// Start ops server for probes and metrics
	healthServer := startHealthServer(cfg, db)

	// Wait for shutdown signal
	<-ctx.Done()

	// Perform graceful shutdown
	return performGracefulShutdown(apiServer, healthServer, workerGroup, recorder, db)
}

// initConfig loads configuration and initializes logger
func initConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// initDatabase initializes database connection with sqlx
func initDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := database.RunMigrations(db.Conn(), cfg.Database.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database connection established (sqlx)",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	return db, nil
}

// initForecaster picks the forecast engine. With an OpenAI key configured the
// delegate is used; otherwise the deterministic heuristic.
func initForecaster(cfg *config.ForecastConfig) forecast.Forecaster {
	if cfg.DelegateEnabled() {
		logger.Info("✅ forecast delegate enabled",
			zap.String("model", cfg.OpenAIModel),
		)
		return forecast.NewDelegate(ai.NewClient(cfg))
	}

	logger.Info("forecast delegate disabled, using heuristic engine")
	return forecast.NewHeuristic()
}

// initDispatcher builds the notification fan-out. Email is always wired; the
// transport itself skips quietly when no SendGrid key is configured. Telegram
// joins only when a token and chat are present.
func initDispatcher(cfg *config.Config) notify.Dispatcher {
	channels := []notify.Dispatcher{
		notify.NewEmailDispatcher(sendgrid.NewMailer(&cfg.Mail)),
	}

	if cfg.Telegram.Enabled() {
		notifier, err := telegram.NewNotifier(&cfg.Telegram)
		if err != nil {
			logger.Warn("failed to initialize telegram notifier", zap.Error(err))
		} else {
			logger.Info("📱 Telegram notifier initialized")
			channels = append(channels, notifier)
		}
	}

	return notify.NewMulti(channels...)
}

// initRecorder connects the optional ClickHouse observation sink. Failures
// disable recording rather than the daemon.
func initRecorder(ctx context.Context, cfg *config.Config) *clickhouse.Recorder {
	if !cfg.ClickHouse.Enabled() {
		return nil
	}

	recorder, err := clickhouse.Connect(&cfg.ClickHouse)
	if err != nil {
		logger.Warn("ClickHouse not available, observation recording disabled", zap.Error(err))
		return nil
	}

	if err := recorder.EnsureSchema(ctx); err != nil {
		logger.Warn("failed to prepare ClickHouse schema, observation recording disabled", zap.Error(err))
		recorder.Close()
		return nil
	}

	return recorder
}

// startWorkers registers and starts the periodic jobs
func startWorkers(ctx context.Context, cfg *config.Config, evaluator *alerts.Evaluator, gateway *market.Gateway, recorder *clickhouse.Recorder) *worker.WorkerGroup {
	group := worker.NewWorkerGroup(ctx)

	if cfg.Alerts.MonitorEnabled {
		group.Add(workers.NewMonitorWorker(evaluator), cfg.Alerts.Interval())
	} else {
		logger.Info("alert monitor disabled")
	}

	if recorder != nil {
		group.Add(workers.NewSnapshotWorker(gateway, recorder), cfg.ClickHouse.RecordInterval)
		logger.Info("✅ observation recording enabled",
			zap.Duration("interval", cfg.ClickHouse.RecordInterval),
		)
	}

	group.Start()
	return group
}

// startHealthServer starts the ops server for K8s probes and Prometheus
func startHealthServer(cfg *config.Config, db *database.DB) *health.Server {
	healthServer := health.NewServer(cfg.API.OpsAddr, db)

	go func() {
		if err := healthServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", zap.Error(err))
		}
	}()

	logger.Info("🚀 CryptoKnight ready",
		zap.String("api_addr", cfg.API.Addr),
		zap.String("ops_addr", cfg.API.OpsAddr),
	)

	// Mark service as ready after initialization
	healthServer.SetReady(true)

	return healthServer
}

// performGracefulShutdown handles graceful shutdown of all components
func performGracefulShutdown(apiServer *api.Server, healthServer *health.Server, workerGroup *worker.WorkerGroup, recorder *clickhouse.Recorder, db *database.DB) error {
	logger.Info("🛑 Shutdown signal received, starting graceful shutdown...")

	// Mark service as not ready (stop accepting new traffic)
	healthServer.SetReady(false)

	// Create shutdown context with timeout (K8s gives 30s terminationGracePeriodSeconds)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer shutdownCancel()

	// Stop the API surface first so no request observes a half-stopped daemon
	logger.Info("stopping api server...")
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown error", zap.Error(err))
	}

	// Stop background workers
	workerGroup.Stop(10 * time.Second)

	// Close the observation sink
	if recorder != nil {
		logger.Info("closing ClickHouse connection...")
		if err := recorder.Close(); err != nil {
			logger.Error("ClickHouse close error", zap.Error(err))
		}
	}

	// Close database connection
	logger.Info("closing database connection...")
	if err := db.Close(); err != nil {
		logger.Error("database close error", zap.Error(err))
	}

	// Stop health server
	logger.Info("stopping health server...")
	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.Error("health server stop error", zap.Error(err))
	}

	// Sync logger
	logger.Sync()

	// Check if shutdown completed in time
	select {
	case <-shutdownCtx.Done():
		logger.Warn("⚠️ shutdown timeout exceeded")
		return fmt.Errorf("graceful shutdown timeout")
	default:
		logger.Info("✅ shutdown completed successfully")
	}

	return nil
}
