package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

// respondError maps a usecase error onto a status code and the common error body.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, msg := classifyError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err), zap.String("path", c.FullPath()))
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func classifyError(err error) (int, string) {
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound, domain.ErrJobNotFound.Error()
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.Is(err, domain.ErrNoItems),
		errors.Is(err, domain.ErrTooManyItems),
		errors.Is(err, domain.ErrInvalidItem):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrResultsNotReady):
		return http.StatusConflict, domain.ErrResultsNotReady.Error()
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, domain.ErrRateLimitExceeded.Error()
	case errors.Is(err, domain.ErrDispatchFailed):
		return http.StatusServiceUnavailable, domain.ErrDispatchFailed.Error()
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, domain.ErrStoreUnavailable.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}
