// Package pool runs queued bulk jobs on a fixed number of goroutines.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

// BatchRunner executes one job. It reports whether the job was a duplicate.
type BatchRunner interface {
	Run(ctx context.Context, jobID uuid.UUID) (bool, error)
}

// DefaultRequeueDelay paces redelivery of jobs locked by another execution.
const DefaultRequeueDelay = 5 * time.Second

// WorkerPool manages a fixed-size pool of goroutines that process jobs.
type WorkerPool struct {
	size         int
	jobs         <-chan *domain.JobMessage
	runner       BatchRunner
	logger       *zap.Logger
	requeueDelay time.Duration
	wg           sync.WaitGroup
}

// Option configures a WorkerPool.
type Option func(*WorkerPool)

// WithRequeueDelay sets how long a worker waits before requeueing a locked job.
func WithRequeueDelay(d time.Duration) Option {
	return func(p *WorkerPool) { p.requeueDelay = d }
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, jobs <-chan *domain.JobMessage, runner BatchRunner, logger *zap.Logger, opts ...Option) *WorkerPool {
	if size < 1 {
		size = 1
	}
	p := &WorkerPool{
		size:         size,
		jobs:         jobs,
		runner:       runner,
		logger:       logger,
		requeueDelay: DefaultRequeueDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current job and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case msg, ok := <-p.jobs:
			if !ok {
				p.logger.Debug("Job channel closed", zap.Int("worker_id", id))
				return
			}
			p.handle(ctx, id, msg)
		}
	}
}

// handle runs one job. A started job runs to a terminal status even when ctx is
// cancelled during shutdown.
func (p *WorkerPool) handle(ctx context.Context, id int, msg *domain.JobMessage) {
	log := p.logger.With(zap.Int("worker_id", id), zap.String("job_id", msg.JobID.String()))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Worker panic recovered", zap.Any("panic", r))
			if err := msg.Nack(false); err != nil {
				log.Error("Failed to NACK message", zap.Error(err))
			}
		}
	}()

	log.Info("Worker processing job")

	isDuplicate, err := p.runner.Run(context.WithoutCancel(ctx), msg.JobID)
	if errors.Is(err, domain.ErrJobLocked) {
		p.requeue(ctx, log, msg)
		return
	}
	if err != nil {
		log.Error("Job execution failed", zap.Error(err))
		// No requeue: the job is already marked failed or left for the reaper.
		if nackErr := msg.Nack(false); nackErr != nil {
			log.Error("Failed to NACK message", zap.Error(nackErr))
		}
		return
	}

	if isDuplicate {
		log.Debug("Duplicate job skipped")
	}
	if ackErr := msg.Ack(); ackErr != nil {
		log.Error("Failed to ACK message", zap.Error(ackErr))
	}
}

// requeue returns a locked job to the queue after requeueDelay, so a redelivery
// resumes the job once a crashed holder's lock expires.
func (p *WorkerPool) requeue(ctx context.Context, log *zap.Logger, msg *domain.JobMessage) {
	log.Info("Job locked elsewhere, requeueing", zap.Duration("delay", p.requeueDelay))

	timer := time.NewTimer(p.requeueDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	if err := msg.Nack(true); err != nil {
		log.Error("Failed to requeue message", zap.Error(err))
	}
}
