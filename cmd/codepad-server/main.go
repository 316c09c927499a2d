package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/app"
	"github.com/Harsh-BH/codepad/internal/config"
	handler "github.com/Harsh-BH/codepad/internal/delivery/http"
	"github.com/Harsh-BH/codepad/internal/pool"
	"github.com/Harsh-BH/codepad/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := app.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting codepad server")

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.HealthCheck{}

	// Execution lock: Redis when configured, in-process otherwise
	lock, rdb, err := app.NewExecutionLock(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize execution lock", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("Connected to Redis")
	}

	// Result store (optional)
	results, dbPool, err := app.NewResultStore(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize result store", zap.Error(err))
	}
	if dbPool != nil {
		defer dbPool.Close()
		checks["postgres"] = dbPool.Ping
		logger.Info("Connected to PostgreSQL")
	}

	// Execution chain
	chain, err := app.NewChain(cfg, logger, app.ChainOptions{})
	if err != nil {
		logger.Fatal("Failed to build execution chain", zap.Error(err))
	}
	defer chain.Close()

	orch := chain.Orchestrator(lock, logger)
	logger.Info("Execution chain ready", zap.Strings("strategies", orch.Strategies()))

	// Worker pool runs executions off the session loops
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	wp := pool.NewWorkerPool(cfg.Worker.PoolSize, cfg.Worker.QueueSize, orch, results, logger)
	wp.Start(workerCtx)

	registry := session.NewRegistry(wp, cfg.Session.HistoryCapacity, cfg.Session.MaxDocuments, logger)

	// Initialize router
	router := handler.NewRouter(&handler.RouterDeps{
		Registry:        registry,
		Languages:       chain.LanguageInfo,
		HealthChecks:    checks,
		Strategies:      orch.Strategies(),
		Logger:          logger,
		RateLimitPerMin: cfg.Server.RateLimit,
		CORSOrigins:     cfg.Server.CORSOrigins,
		JWTSecret:       cfg.Server.JWTSecret,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("Shutting down codepad server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	registry.CloseAll()

	// Let running executions finish before their workspaces go away.
	stopped := make(chan struct{})
	go func() {
		wp.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		cancelWorkers()
		<-stopped
	}

	logger.Info("codepad server stopped")
}
