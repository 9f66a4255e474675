package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/metrics"
)

// VerifyAddressUsecase runs a single synchronous verification.
type VerifyAddressUsecase struct {
	verifier Verifier
	logger   *zap.Logger
}

// NewVerifyAddressUsecase creates a new VerifyAddressUsecase.
func NewVerifyAddressUsecase(verifier Verifier, logger *zap.Logger) *VerifyAddressUsecase {
	return &VerifyAddressUsecase{verifier: verifier, logger: logger}
}

// Execute verifies req.Email.
func (uc *VerifyAddressUsecase) Execute(ctx context.Context, req *domain.VerifyRequest) (*domain.VerifyResponse, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, domain.ErrNoItems
	}
	if len(email) > maxItemLength {
		return nil, &domain.ValidationError{Err: domain.ErrInvalidItem, Detail: "address too long"}
	}

	var opts domain.VerifyOptions
	if req.Options != nil {
		opts = *req.Options
	}

	verdict := uc.verifier.Verify(ctx, email, opts)
	metrics.ItemsVerified.WithLabelValues(string(verdict.State)).Inc()

	uc.logger.Debug("Address verified",
		zap.String("state", string(verdict.State)),
		zap.String("reason", verdict.Reason),
		zap.Int64("duration_ms", verdict.DurationMs),
	)

	return &domain.VerifyResponse{Success: true, Result: verdict}, nil
}
