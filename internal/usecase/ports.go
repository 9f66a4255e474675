package usecase

import (
	"context"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/repository"
)

// Verifier checks a single address. Ordinary verification failures are encoded
// in the returned verdict.
type Verifier interface {
	Verify(ctx context.Context, address string, opts domain.VerifyOptions) domain.Verdict
}

// ActivityLogger records audit events. Log must not block.
type ActivityLogger interface {
	Log(event domain.ActivityEvent)
}

// UnlimitedCredits is the credit ledger used when metering is disabled.
type UnlimitedCredits struct{}

var _ repository.CreditRepository = UnlimitedCredits{}

func (UnlimitedCredits) CheckQuota(_ context.Context, _ string, amount int) (*domain.Quota, error) {
	return &domain.Quota{Allowed: true, Remaining: amount, Required: amount}, nil
}

func (UnlimitedCredits) Deduct(context.Context, string, int) error { return nil }

type nopActivity struct{}

func (nopActivity) Log(domain.ActivityEvent) {}
