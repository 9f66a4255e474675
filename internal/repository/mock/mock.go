package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/repository"
)

// ---- IdempotencyStore mock ----

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is an in-memory lock table for testing. Hooks override the
// default behaviour.
type IdempotencyStore struct {
	mu      sync.Mutex
	holders map[uuid.UUID]string

	AcquireLockFn func(ctx context.Context, jobID uuid.UUID, owner string) (bool, error)
	RefreshLockFn func(ctx context.Context, jobID uuid.UUID, owner string) (bool, error)
	ReleaseLockFn func(ctx context.Context, jobID uuid.UUID, owner string) error

	AcquireCalls []uuid.UUID
	RefreshCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
}

// Hold marks jobID as locked by owner, as if a crashed worker still held it.
func (m *IdempotencyStore) Hold(jobID uuid.UUID, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holders == nil {
		m.holders = make(map[uuid.UUID]string)
	}
	m.holders[jobID] = owner
}

// Expire drops the lock on jobID regardless of owner.
func (m *IdempotencyStore) Expire(jobID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holders, jobID)
}

// Holder returns the current owner of jobID, or "".
func (m *IdempotencyStore) Holder(jobID uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holders[jobID]
}

func (m *IdempotencyStore) AcquireLock(ctx context.Context, jobID uuid.UUID, owner string) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, jobID)
	m.mu.Unlock()
	if m.AcquireLockFn != nil {
		return m.AcquireLockFn(ctx, jobID, owner)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.holders[jobID]; held {
		return false, nil
	}
	if m.holders == nil {
		m.holders = make(map[uuid.UUID]string)
	}
	m.holders[jobID] = owner
	return true, nil
}

func (m *IdempotencyStore) RefreshLock(ctx context.Context, jobID uuid.UUID, owner string) (bool, error) {
	m.mu.Lock()
	m.RefreshCalls = append(m.RefreshCalls, jobID)
	m.mu.Unlock()
	if m.RefreshLockFn != nil {
		return m.RefreshLockFn(ctx, jobID, owner)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holders[jobID] == owner, nil
}

func (m *IdempotencyStore) ReleaseLock(ctx context.Context, jobID uuid.UUID, owner string) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, jobID)
	m.mu.Unlock()
	if m.ReleaseLockFn != nil {
		return m.ReleaseLockFn(ctx, jobID, owner)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holders[jobID] == owner {
		delete(m.holders, jobID)
	}
	return nil
}

// ---- CreditRepository mock ----

var _ repository.CreditRepository = (*CreditRepository)(nil)

// CreditRepository is a test double for repository.CreditRepository.
type CreditRepository struct {
	mu sync.Mutex

	CheckQuotaFn func(ctx context.Context, orgID string, amount int) (*domain.Quota, error)
	DeductFn     func(ctx context.Context, orgID string, amount int) error

	Deductions []Deduction
}

// Deduction records one Deduct call.
type Deduction struct {
	OrgID  string
	Amount int
}

func (m *CreditRepository) CheckQuota(ctx context.Context, orgID string, amount int) (*domain.Quota, error) {
	if m.CheckQuotaFn != nil {
		return m.CheckQuotaFn(ctx, orgID, amount)
	}
	return &domain.Quota{Allowed: true, Remaining: amount, Required: amount}, nil
}

func (m *CreditRepository) Deduct(ctx context.Context, orgID string, amount int) error {
	m.mu.Lock()
	m.Deductions = append(m.Deductions, Deduction{OrgID: orgID, Amount: amount})
	m.mu.Unlock()
	if m.DeductFn != nil {
		return m.DeductFn(ctx, orgID, amount)
	}
	return nil
}

// DeductionCount returns the number of recorded deductions.
func (m *CreditRepository) DeductionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Deductions)
}
