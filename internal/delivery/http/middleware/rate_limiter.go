package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/metrics"
	"github.com/Harsh-BH/bulkcheck/internal/ratelimit"
)

// RateLimiter admits anonymous requests under class. Owner requests are not limited.
// A limiter backend error lets the request through.
func RateLimiter(limiter ratelimit.Limiter, class ratelimit.Class, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetOwner(c) != nil {
			c.Next()
			return
		}

		identity := ratelimit.ClientIdentity(c.Request)
		decision, err := limiter.Allow(c.Request.Context(), class, identity)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request",
				zap.String("class", class.Name),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(retryAfter, 1)))
			metrics.RateLimitRejections.WithLabelValues(class.Name).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   domain.ErrRateLimitExceeded.Error(),
			})
			return
		}

		c.Next()
	}
}
