package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

var _ Dispatcher = (*LocalDispatcher)(nil)

// LocalDispatcher queues jobs on a bounded channel consumed by an in-process worker pool.
type LocalDispatcher struct {
	jobs   chan *domain.JobMessage
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewLocalDispatcher creates a dispatcher with room for size queued jobs.
func NewLocalDispatcher(size int, logger *zap.Logger) *LocalDispatcher {
	if size < 1 {
		size = 1
	}
	return &LocalDispatcher{
		jobs:   make(chan *domain.JobMessage, size),
		logger: logger,
	}
}

// Jobs is the channel the worker pool reads from. It is closed by Close.
func (d *LocalDispatcher) Jobs() <-chan *domain.JobMessage {
	return d.jobs
}

// Dispatch enqueues the job without blocking. A full queue returns ErrQueueFull.
func (d *LocalDispatcher) Dispatch(ctx context.Context, job *domain.Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	msg := &domain.JobMessage{
		JobID: job.ID,
		Ack:   func() error { return nil },
		Nack:  func(bool) error { return nil },
	}

	select {
	case d.jobs <- msg:
		d.logger.Debug("Job queued locally",
			zap.String("job_id", job.ID.String()),
			zap.Int("queue_depth", len(d.jobs)),
		)
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and closes the channel so workers drain and exit.
func (d *LocalDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	return nil
}
