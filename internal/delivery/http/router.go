package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/delivery/http/middleware"
	"github.com/Harsh-BH/bulkcheck/internal/ratelimit"
	"github.com/Harsh-BH/bulkcheck/internal/usecase"
)

// DefaultMaxBodyBytes fits a maximal job of long addresses with room to spare.
const DefaultMaxBodyBytes int64 = 4 << 20

// RouterDeps holds everything the HTTP layer needs.
type RouterDeps struct {
	CreateJob *usecase.CreateJobUsecase
	GetJob    *usecase.GetJobUsecase
	Verify    *usecase.VerifyAddressUsecase

	Limiter     ratelimit.Limiter
	VerifyClass ratelimit.Class
	BulkClass   ratelimit.Class

	// GatewaySecret authenticates owner headers. Empty means every request is anonymous.
	GatewaySecret string

	HealthChecks []HealthCheck
	MaxBodyBytes int64
	Logger       *zap.Logger
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Owner(deps.GatewaySecret))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	bulkHandler := NewBulkHandler(deps.CreateJob, deps.GetJob, logger)
	verifyHandler := NewVerifyHandler(deps.Verify, logger)
	wsHandler := NewWebSocketHandler(deps.GetJob, logger)
	healthHandler := NewHealthHandler(deps.HealthChecks, logger)

	bodyLimit := middleware.BodySizeLimit(deps.MaxBodyBytes)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		v1.POST("/verify",
			middleware.RateLimiter(deps.Limiter, deps.VerifyClass, logger),
			bodyLimit,
			verifyHandler.Verify,
		)

		bulk := v1.Group("/bulk")
		{
			bulk.POST("",
				middleware.RateLimiter(deps.Limiter, deps.BulkClass, logger),
				bodyLimit,
				bulkHandler.Create,
			)
			bulk.GET("/:id", bulkHandler.Status)
			bulk.GET("/:id/results", bulkHandler.Results)
			bulk.GET("/:id/stream", wsHandler.Stream)
		}
	}

	return router
}
