package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

// JobRepository defines the interface for job persistence operations.
// Implementations must be safe for concurrent use.
type JobRepository interface {
	// Save writes a new job record.
	Save(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by id. Returns domain.ErrJobNotFound when absent.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Update merges patch onto the stored record (read-modify-write) and returns the result.
	Update(ctx context.Context, id uuid.UUID, patch domain.JobPatch) (*domain.Job, error)

	// Delete removes a job. Failures are logged by the implementation, never returned.
	Delete(ctx context.Context, id uuid.UUID)

	// ListCreatedBefore returns up to limit job ids created before cutoff, oldest first,
	// skipping the first offset matches.
	ListCreatedBefore(ctx context.Context, cutoff time.Time, offset, limit int) ([]uuid.UUID, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// IdempotencyStore defines the interface for distributed execution locks. Each lock
// records the token of the execution holding it and expires unless refreshed, so a
// crashed holder frees the job within one TTL.
type IdempotencyStore interface {
	// AcquireLock attempts to take the lock for owner.
	// Returns false if another owner holds it.
	AcquireLock(ctx context.Context, jobID uuid.UUID, owner string) (bool, error)

	// RefreshLock extends the lock TTL. Returns false if owner no longer holds it.
	RefreshLock(ctx context.Context, jobID uuid.UUID, owner string) (bool, error)

	// ReleaseLock removes the lock if owner still holds it.
	ReleaseLock(ctx context.Context, jobID uuid.UUID, owner string) error
}

// CreditRepository meters verification usage per organization.
type CreditRepository interface {
	CheckQuota(ctx context.Context, orgID string, amount int) (*domain.Quota, error)
	Deduct(ctx context.Context, orgID string, amount int) error
}
