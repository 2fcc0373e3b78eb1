package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/aradsms/routing_engine/internal/platform/cache"
	"github.com/aradsms/routing_engine/internal/platform/config"
	"github.com/aradsms/routing_engine/internal/platform/database"
	"github.com/aradsms/routing_engine/internal/platform/logger"
	"github.com/aradsms/routing_engine/internal/platform/messagebroker"
	grpcadapter "github.com/aradsms/routing_engine/internal/routing_service/adapters/grpc"
	httpadapter "github.com/aradsms/routing_engine/internal/routing_service/adapters/http"
	"github.com/aradsms/routing_engine/internal/routing_service/app"
	"github.com/aradsms/routing_engine/internal/routing_service/domain"
	"github.com/aradsms/routing_engine/internal/routing_service/repository/postgres"
	redisrepo "github.com/aradsms/routing_engine/internal/routing_service/repository/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	appLogger.Info("Routing Service starting...", "log_level", cfg.LogLevel)

	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	dbPool, err := database.NewDBPool(appCtx, cfg.PostgresDSN, database.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL database")

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, "routing-service", appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS")

	var healthOverlay domain.HealthOverlay
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(appCtx, cache.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			// stored gateway status is used until the service restarts with Redis reachable
			appLogger.Warn("Redis unavailable, gateway health overlay disabled", "error", err, "addr", cfg.RedisAddr)
		} else {
			defer rdb.Close()
			healthOverlay = redisrepo.NewHealthOverlay(rdb, cfg.HealthStaleAfter, appLogger)
			appLogger.Info("Successfully connected to Redis")
		}
	}

	ruleRepo := postgres.NewPgXRuleRepository(dbPool, appLogger)
	gatewayRepo := postgres.NewPgXGatewayRepository(dbPool, appLogger)
	countryRepo := postgres.NewPgXCountryRepository(dbPool, appLogger)
	decisionRepo := postgres.NewPgXDecisionRepository(dbPool, appLogger)

	snapshots := app.NewSnapshotStore()
	refresher := app.NewRefresher(ruleRepo, gatewayRepo, countryRepo, healthOverlay, snapshots, appLogger)

	decisionWriter := app.NewDecisionWriter(decisionRepo, natsClient, app.DecisionWriterConfig{
		QueueSize:          cfg.DecisionQueueSize,
		BatchSize:          cfg.DecisionBatchSize,
		FlushInterval:      cfg.DecisionFlushInterval,
		Subject:            cfg.DecisionSubject,
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
	}, appLogger)
	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		decisionWriter.Run(writerCtx)
	}()

	engine := app.NewEngine(snapshots, snapshots, snapshots, decisionWriter, appLogger)

	healthServer := grpcadapter.NewHealthServer(appLogger)
	refresher.OnReady(healthServer.SetServing)
	go func() {
		if err := healthServer.Serve(cfg.GRPCHealthPort); err != nil {
			appLogger.Error("gRPC health server failed", "error", err)
		}
	}()

	if err := refresher.Start(appCtx, cfg.SnapshotRefreshSpec); err != nil {
		appLogger.Error("Failed to schedule snapshot refresh", "error", err)
		os.Exit(1)
	}

	consumer := app.NewRouteConsumer(engine, appLogger)
	if err := consumer.Start(appCtx, natsClient, cfg.RouteRequestSubject, cfg.RouteQueueGroup); err != nil {
		appLogger.Error("Failed to start routing request consumer", "error", err)
		os.Exit(1)
	}

	routingHandler := httpadapter.NewRoutingHandler(engine, app.NewStatisticsService(decisionRepo), refresher, snapshots, appLogger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AdminHTTPPort),
		Handler:           httpadapter.NewRouter(routingHandler, natsClient, []byte(cfg.JWTAccessSecret), appLogger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		appLogger.Info("Admin HTTP server listening", "port", cfg.AdminHTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Admin HTTP server failed", "error", err)
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quitChan
	appLogger.Info("Shutdown signal received", "signal", receivedSignal.String())

	appLogger.Info("Attempting graceful shutdown of Routing Service...")
	consumer.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Admin HTTP server shutdown failed", "error", err)
	}

	cancelAppCtx()
	refresher.Stop()
	healthServer.Stop()

	// decisions still queued are flushed before the store and broker close
	stopWriter()
	select {
	case <-writerDone:
	case <-shutdownCtx.Done():
		appLogger.Warn("Decision log drain timed out", "pending", decisionWriter.Pending())
	}

	appLogger.Info("Routing Service shut down successfully.")
}
