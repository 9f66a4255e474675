// Package bootstrap connects the backends selected by configuration for both binaries.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Harsh-BH/bulkcheck/internal/config"
	"github.com/Harsh-BH/bulkcheck/internal/ratelimit"
	"github.com/Harsh-BH/bulkcheck/internal/repository"
	"github.com/Harsh-BH/bulkcheck/internal/repository/postgres"
	redisrepo "github.com/Harsh-BH/bulkcheck/internal/repository/redis"
)

// NewLogger builds the process logger. debug selects the development encoder.
func NewLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "debug") {
		return zap.NewDevelopment()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// Backends holds the shared clients. Either may be nil when configuration does not need it.
type Backends struct {
	Redis    *goredis.Client
	Postgres *pgxpool.Pool
}

// Close releases every opened client.
func (b *Backends) Close() {
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.Postgres != nil {
		b.Postgres.Close()
	}
}

// Connect opens the clients cfg requires. needRedis forces a Redis client even when no
// store uses it (the worker's execution lock).
func Connect(ctx context.Context, cfg *config.Config, needRedis bool, logger *zap.Logger) (*Backends, error) {
	b := &Backends{}

	if needRedis || cfg.Store.Backend == "redis" || cfg.Store.RateLimitBackend == "redis" {
		redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		b.Redis = goredis.NewClient(redisOpts)
		if err := b.Redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("Connected to Redis")
	}

	if cfg.Store.Backend == "postgres" || cfg.Credits.Enabled {
		if cfg.Database.MigrateOnStart {
			if err := postgres.RunMigrations(cfg.Database.URL); err != nil {
				b.Close()
				return nil, err
			}
			logger.Info("Database migrations applied")
		}

		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.Postgres = pool
		if err := pool.Ping(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("Connected to PostgreSQL")
	}

	return b, nil
}

// JobRepository returns the configured job store.
func (b *Backends) JobRepository(cfg *config.Config, logger *zap.Logger) repository.JobRepository {
	if cfg.Store.Backend == "postgres" {
		return postgres.NewPostgresJobRepository(b.Postgres, cfg.Job.TTL, logger)
	}
	return redisrepo.NewRedisJobRepository(b.Redis, cfg.Job.TTL, logger)
}

// CreditRepository returns the postgres ledger, or nil when metering is disabled.
func (b *Backends) CreditRepository(cfg *config.Config) repository.CreditRepository {
	if !cfg.Credits.Enabled {
		return nil
	}
	return postgres.NewPostgresCreditRepository(b.Postgres)
}

// Limiter returns the configured rate limiter and a function that releases it.
func (b *Backends) Limiter(cfg *config.Config) (ratelimit.Limiter, func()) {
	if cfg.Store.RateLimitBackend == "memory" {
		l := ratelimit.NewMemoryLimiter(time.Minute)
		return l, func() { _ = l.Close() }
	}
	return ratelimit.NewRedisLimiter(b.Redis), func() {}
}

// RateClasses returns the verify and bulk classes.
func RateClasses(cfg *config.Config) (verify, bulk ratelimit.Class) {
	verify = ratelimit.Class{Name: "verify", Limit: cfg.RateLimit.VerifyLimit, Window: cfg.RateLimit.VerifyWindow}
	bulk = ratelimit.Class{Name: "bulk", Limit: cfg.RateLimit.BulkLimit, Window: cfg.RateLimit.BulkWindow}
	return verify, bulk
}
