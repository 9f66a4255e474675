package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/activity"
	"github.com/Harsh-BH/bulkcheck/internal/bootstrap"
	"github.com/Harsh-BH/bulkcheck/internal/config"
	amqpdelivery "github.com/Harsh-BH/bulkcheck/internal/delivery/amqp"
	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/pool"
	redisrepo "github.com/Harsh-BH/bulkcheck/internal/repository/redis"
	"github.com/Harsh-BH/bulkcheck/internal/usecase"
	"github.com/Harsh-BH/bulkcheck/internal/verifier"
)

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

	logger.Info("Starting bulkcheck verification worker", zap.String("store", cfg.Store.Backend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends, err := bootstrap.Connect(ctx, cfg, true, logger)
	if err != nil {
		logger.Fatal("Failed to connect backends", zap.Error(err))
	}
	defer backends.Close()

	// Initialize repositories
	jobRepo := backends.JobRepository(cfg, logger)
	locks := redisrepo.NewRedisIdempotencyStore(backends.Redis, cfg.Job.LockTTL)

	activityLog := activity.NewLogger(1024, logger)
	defer activityLog.Close()

	verify := verifier.New(nil, verifier.Config{
		Timeout: cfg.Verify.Timeout,
		DNSRate: cfg.Verify.DNSRate,
	}, logger)

	executor := usecase.NewBatchExecutor(jobRepo, locks, verify, backends.CreditRepository(cfg), activityLog, cfg.Job.BatchSize, logger)

	// Create buffered job channel
	jobsChan := make(chan *domain.JobMessage, cfg.Worker.PoolSize)

	// Initialize AMQP consumer
	consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, cfg.Worker.PoolSize, jobsChan, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AMQP consumer", zap.Error(err))
	}
	defer consumer.Close()
	logger.Info("Connected to RabbitMQ")

	// Start worker pool
	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, jobsChan, executor, logger)
	workerPool.Start(ctx)

	// Start AMQP consumer in a goroutine
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("AMQP consumer error", zap.Error(err))
			cancel()
		}
	}()

	// Start Prometheus metrics server
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Wait for workers to finish in-flight jobs; unacked deliveries are redelivered.
	workerPool.Stop()

	logger.Info("Worker stopped")
}
