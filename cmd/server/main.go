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

	"github.com/Harsh-BH/bulkcheck/internal/activity"
	"github.com/Harsh-BH/bulkcheck/internal/bootstrap"
	"github.com/Harsh-BH/bulkcheck/internal/config"
	handler "github.com/Harsh-BH/bulkcheck/internal/delivery/http"
	"github.com/Harsh-BH/bulkcheck/internal/dispatch"
	"github.com/Harsh-BH/bulkcheck/internal/pool"
	"github.com/Harsh-BH/bulkcheck/internal/reaper"
	"github.com/Harsh-BH/bulkcheck/internal/usecase"
	"github.com/Harsh-BH/bulkcheck/internal/verifier"
)

const activityBuffer = 1024

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := bootstrap.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting bulkcheck API server",
		zap.String("store", cfg.Store.Backend),
		zap.String("dispatch", cfg.Store.DispatchMode),
	)

	gin.SetMode(cfg.Server.GinMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends, err := bootstrap.Connect(ctx, cfg, false, logger)
	if err != nil {
		logger.Fatal("Failed to connect backends", zap.Error(err))
	}
	defer backends.Close()

	jobRepo := backends.JobRepository(cfg, logger)
	credits := backends.CreditRepository(cfg)

	activityLog := activity.NewLogger(activityBuffer, logger)
	defer activityLog.Close()

	verify := verifier.New(nil, verifier.Config{
		Timeout: cfg.Verify.Timeout,
		DNSRate: cfg.Verify.DNSRate,
	}, logger)

	// Dispatcher: in-process pool or RabbitMQ
	var (
		dispatcher dispatch.Dispatcher
		workerPool *pool.WorkerPool
	)
	switch cfg.Store.DispatchMode {
	case "amqp":
		pub, err := dispatch.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
		}
		dispatcher = pub
		logger.Info("Connected to RabbitMQ")
	default:
		local := dispatch.NewLocalDispatcher(cfg.Worker.QueueSize, logger)
		executor := usecase.NewBatchExecutor(jobRepo, nil, verify, credits, activityLog, cfg.Job.BatchSize, logger)
		workerPool = pool.NewWorkerPool(cfg.Worker.PoolSize, local.Jobs(), executor, logger)
		workerPool.Start(ctx)
		dispatcher = local
	}

	// Initialize use cases
	createJobUC := usecase.NewCreateJobUsecase(jobRepo, dispatcher, credits, activityLog, cfg.Job.MaxItems, logger)
	getJobUC := usecase.NewGetJobUsecase(jobRepo, logger)
	verifyUC := usecase.NewVerifyAddressUsecase(verify, logger)

	if cfg.Server.GatewaySecret == "" {
		logger.Warn("GATEWAY_SECRET not set, owner headers will be ignored")
	}

	limiter, releaseLimiter := backends.Limiter(cfg)
	defer releaseLimiter()
	verifyClass, bulkClass := bootstrap.RateClasses(cfg)

	healthChecks := []handler.HealthCheck{{Name: cfg.Store.Backend, Check: jobRepo.Ping}}
	if backends.Redis != nil && cfg.Store.Backend != "redis" {
		healthChecks = append(healthChecks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return backends.Redis.Ping(ctx).Err() },
		})
	}

	router := handler.NewRouter(handler.RouterDeps{
		CreateJob:     createJobUC,
		GetJob:        getJobUC,
		Verify:        verifyUC,
		Limiter:       limiter,
		VerifyClass:   verifyClass,
		BulkClass:     bulkClass,
		HealthChecks:  healthChecks,
		GatewaySecret: cfg.Server.GatewaySecret,
		Logger:        logger,
	})

	// Stuck-job recovery and retention
	sweeper := reaper.New(jobRepo, reaper.Config{
		Interval:   cfg.Reaper.Interval,
		StaleAfter: cfg.Reaper.StaleAfter,
		Retention:  cfg.Reaper.Retention,
	}, logger)
	go sweeper.Run(ctx)

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
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Queued jobs that never started stay pending and are failed by the reaper.
	if err := dispatcher.Close(); err != nil {
		logger.Warn("Failed to close dispatcher", zap.Error(err))
	}
	cancel()
	if workerPool != nil {
		workerPool.Stop()
	}

	logger.Info("API server stopped")
}
