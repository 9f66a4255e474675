package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/repository"
)

// Ensure MockJobRepository implements repository.JobRepository.
var _ repository.JobRepository = (*MockJobRepository)(nil)

// MockJobRepository is an in-memory job store for testing.
// It applies patches with the same merge rules as the real backends.
type MockJobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job

	// Hook functions for injecting errors
	SaveFunc   func(ctx context.Context, job *domain.Job) error
	GetFunc    func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	UpdateFunc func(ctx context.Context, id uuid.UUID, patch domain.JobPatch) error

	// Recorded calls for assertions.
	Updates []domain.JobPatch
	Deleted []uuid.UUID
}

// NewMockJobRepository creates a new mock repository.
func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		jobs: make(map[uuid.UUID]*domain.Job),
	}
}

func (m *MockJobRepository) Save(ctx context.Context, job *domain.Job) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *MockJobRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

func (m *MockJobRepository) Update(ctx context.Context, id uuid.UUID, patch domain.JobPatch) (*domain.Job, error) {
	m.mu.Lock()
	m.Updates = append(m.Updates, patch)
	m.mu.Unlock()

	if m.UpdateFunc != nil {
		if err := m.UpdateFunc(ctx, id, patch); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if err := job.Apply(patch, time.Now().UTC()); err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

func (m *MockJobRepository) Delete(ctx context.Context, id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, id)
	delete(m.jobs, id)
}

func (m *MockJobRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time, offset, limit int) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []*domain.Job
	for _, j := range m.jobs {
		if j.CreatedAt.Before(cutoff) {
			jobs = append(jobs, j)
		}
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].CreatedAt.Before(jobs[b].CreatedAt) })
	if offset >= len(jobs) {
		return []uuid.UUID{}, nil
	}
	jobs = jobs[offset:]
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}

	ids := make([]uuid.UUID, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	return ids, nil
}

func (m *MockJobRepository) Ping(ctx context.Context) error {
	return nil
}

// Put stores a job directly (for test setup).
func (m *MockJobRepository) Put(job *domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
}

// GetAll returns all stored jobs (for test assertions).
func (m *MockJobRepository) GetAll() []*domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		result = append(result, j.Clone())
	}
	return result
}

// UpdateCount returns the number of Update calls so far.
func (m *MockJobRepository) UpdateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Updates)
}

// RecordedUpdates returns a copy of the patches passed to Update.
func (m *MockJobRepository) RecordedUpdates() []domain.JobPatch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.JobPatch(nil), m.Updates...)
}
