package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck checks one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checks []HealthCheck, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second, logger: logger}
}

// Health handles GET /api/v1/health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	services := gin.H{}
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.String("service", check.Name), zap.Error(err))
			services[check.Name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		services[check.Name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":   overall,
		"services": services,
	})
}
