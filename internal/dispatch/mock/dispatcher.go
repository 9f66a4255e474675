package mock

import (
	"context"
	"sync"

	"github.com/Harsh-BH/bulkcheck/internal/dispatch"
	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

// Ensure MockDispatcher implements dispatch.Dispatcher.
var _ dispatch.Dispatcher = (*MockDispatcher)(nil)

// MockDispatcher records dispatched jobs for testing.
type MockDispatcher struct {
	mu         sync.Mutex
	Dispatched []*domain.Job
	DispatchFn func(ctx context.Context, job *domain.Job) error
}

// NewMockDispatcher creates a new mock dispatcher.
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

func (m *MockDispatcher) Dispatch(ctx context.Context, job *domain.Job) error {
	if m.DispatchFn != nil {
		return m.DispatchFn(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dispatched = append(m.Dispatched, job.Clone())
	return nil
}

func (m *MockDispatcher) Close() error {
	return nil
}

// Count returns the number of recorded dispatches.
func (m *MockDispatcher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Dispatched)
}
