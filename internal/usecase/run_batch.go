package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/metrics"
	"github.com/Harsh-BH/bulkcheck/internal/repository"
	"github.com/Harsh-BH/bulkcheck/internal/stats"
)

// DefaultBatchSize is the number of items verified concurrently per chunk.
const DefaultBatchSize = 10

// BatchExecutor drives one job from pending to a terminal status. Chunks run
// sequentially; items inside a chunk run concurrently. Progress is persisted after
// every chunk.
type BatchExecutor struct {
	repo      repository.JobRepository
	locks     repository.IdempotencyStore
	verifier  Verifier
	credits   repository.CreditRepository
	activity  ActivityLogger
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// NewBatchExecutor creates a new BatchExecutor. locks may be nil when only one
// process executes jobs.
func NewBatchExecutor(
	repo repository.JobRepository,
	locks repository.IdempotencyStore,
	verifier Verifier,
	credits repository.CreditRepository,
	activity ActivityLogger,
	batchSize int,
	logger *zap.Logger,
) *BatchExecutor {
	if credits == nil {
		credits = UnlimitedCredits{}
	}
	if activity == nil {
		activity = nopActivity{}
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchExecutor{
		repo:      repo,
		locks:     locks,
		verifier:  verifier,
		credits:   credits,
		activity:  activity,
		batchSize: batchSize,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the job. It returns (isDuplicate, error): isDuplicate is true when the
// job is already terminal or another execution took it over mid-run. A job locked by
// another execution that has not finished yet returns domain.ErrJobLocked so the
// delivery can be retried once that lock expires.
func (e *BatchExecutor) Run(ctx context.Context, jobID uuid.UUID) (bool, error) {
	log := e.logger.With(zap.String("job_id", jobID.String()))

	var lockOwner string
	if e.locks != nil {
		lockOwner = uuid.NewString()
		acquired, err := e.locks.AcquireLock(ctx, jobID, lockOwner)
		if err != nil {
			log.Error("Failed to acquire execution lock", zap.Error(err))
			return false, err
		}
		if !acquired {
			return e.lockedElsewhere(ctx, jobID)
		}
		defer func() {
			if err := e.locks.ReleaseLock(ctx, jobID, lockOwner); err != nil {
				log.Warn("Failed to release execution lock", zap.Error(err))
			}
		}()
	}

	job, err := e.repo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			log.Warn("Dispatched job no longer exists")
			return false, nil
		}
		return false, fmt.Errorf("load job: %w", err)
	}
	if job.Status.IsTerminal() {
		log.Info("Job already finished, skipping", zap.String("status", string(job.Status)))
		return true, nil
	}

	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()

	startedAt := e.now()
	if job.StartedAt != nil {
		startedAt = *job.StartedAt
	}
	processing := domain.StatusProcessing
	if job, err = e.repo.Update(ctx, jobID, domain.JobPatch{Status: &processing, StartedAt: &startedAt}); err != nil {
		return false, e.fail(ctx, jobID, nil, fmt.Errorf("mark processing: %w", err))
	}

	results := job.Results
	if len(results) > 0 {
		log.Info("Resuming job from persisted progress", zap.Int("processed", len(results)))
	}

	for start, chunk := len(results), 0; start < len(job.Items); start, chunk = start+e.batchSize, chunk+1 {
		end := min(start+e.batchSize, len(job.Items))

		chunkStart := time.Now()
		verdicts := e.runChunk(ctx, job.Items[start:end], job.Options)
		metrics.ChunkDuration.Observe(time.Since(chunkStart).Seconds())

		results = append(results, verdicts...)
		if _, err := e.repo.Update(ctx, jobID, domain.JobPatch{Results: results}); err != nil {
			return false, e.fail(ctx, jobID, job.Owner, fmt.Errorf("persist chunk %d: %w", chunk, err))
		}

		log.Debug("Chunk persisted",
			zap.Int("chunk", chunk),
			zap.Int("processed", len(results)),
			zap.Int("total", len(job.Items)),
		)

		if !e.refreshLock(ctx, jobID, lockOwner) {
			log.Warn("Execution lock lost, leaving the job to its new holder", zap.Int("processed", len(results)))
			return true, nil
		}
	}

	completedAt := e.now()
	completed := domain.StatusCompleted
	patch := domain.JobPatch{Status: &completed, Results: results, CompletedAt: &completedAt}
	if len(results) > 0 {
		patch.Stats = stats.Aggregate(results, startedAt, completedAt)
	}
	if _, err := e.repo.Update(ctx, jobID, patch); err != nil {
		return false, e.fail(ctx, jobID, job.Owner, fmt.Errorf("persist completion: %w", err))
	}

	metrics.JobsFinished.WithLabelValues(string(domain.StatusCompleted)).Inc()
	metrics.JobDuration.Observe(completedAt.Sub(startedAt).Seconds())

	if job.Owner != nil {
		if err := e.credits.Deduct(ctx, job.Owner.OrgID, len(results)); err != nil {
			log.Error("Failed to deduct credits", zap.Error(err), zap.String("org_id", job.Owner.OrgID))
		}
	}

	e.activity.Log(domain.ActivityEvent{
		Type:      domain.ActivityJobCompleted,
		JobID:     jobID,
		Owner:     job.Owner,
		ItemCount: len(results),
		At:        completedAt,
	})

	log.Info("Job completed",
		zap.Int("item_count", len(results)),
		zap.Duration("duration", completedAt.Sub(startedAt)),
	)
	return false, nil
}

// lockedElsewhere reports a held lock. Finished or missing jobs are duplicates; anything
// else is still owed work.
func (e *BatchExecutor) lockedElsewhere(ctx context.Context, jobID uuid.UUID) (bool, error) {
	log := e.logger.With(zap.String("job_id", jobID.String()))

	job, err := e.repo.Get(ctx, jobID)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("load locked job: %w", err)
	case job.Status.IsTerminal():
		log.Info("Job already finished, skipping", zap.String("status", string(job.Status)))
		return true, nil
	}

	log.Info("Job locked by another execution", zap.String("status", string(job.Status)))
	return false, domain.ErrJobLocked
}

// refreshLock extends the execution lock. It returns false only when another execution
// now holds it; a backend error keeps the run going on the remaining TTL.
func (e *BatchExecutor) refreshLock(ctx context.Context, jobID uuid.UUID, owner string) bool {
	if e.locks == nil {
		return true
	}
	held, err := e.locks.RefreshLock(ctx, jobID, owner)
	if err != nil {
		e.logger.Warn("Failed to refresh execution lock", zap.String("job_id", jobID.String()), zap.Error(err))
		return true
	}
	return held
}

// runChunk verifies items concurrently and returns verdicts in input order.
func (e *BatchExecutor) runChunk(ctx context.Context, items []string, opts domain.VerifyOptions) []domain.Verdict {
	out := make([]domain.Verdict, len(items))

	var g errgroup.Group
	g.SetLimit(e.batchSize)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			out[i] = e.verifyOne(ctx, item, opts)
			return nil
		})
	}
	_ = g.Wait()

	for _, v := range out {
		metrics.ItemsVerified.WithLabelValues(string(v.State)).Inc()
	}
	return out
}

// verifyOne converts a verifier panic into an unknown verdict so one item cannot
// abort the job.
func (e *BatchExecutor) verifyOne(ctx context.Context, item string, opts domain.VerifyOptions) (v domain.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Verifier panic recovered", zap.String("email", item), zap.Any("panic", r))
			v = domain.UnknownVerdict(item, "verification_error")
		}
	}()
	return e.verifier.Verify(ctx, item, opts)
}

// fail moves the job to failed. Partial results stay in the record. If the write
// fails too, the job stays in processing until the reaper picks it up.
func (e *BatchExecutor) fail(ctx context.Context, jobID uuid.UUID, owner *domain.Owner, cause error) error {
	log := e.logger.With(zap.String("job_id", jobID.String()))
	log.Error("Job execution failed", zap.Error(cause))

	failed := domain.StatusFailed
	msg := "verification aborted due to an internal error"
	if errors.Is(cause, domain.ErrStoreUnavailable) {
		msg = "verification aborted: job store unavailable"
	}
	if _, err := e.repo.Update(ctx, jobID, domain.JobPatch{Status: &failed, ErrorMessage: &msg}); err != nil {
		log.Error("Failed to mark job as failed, leaving it for the reaper", zap.Error(err))
		return cause
	}

	metrics.JobsFinished.WithLabelValues(string(domain.StatusFailed)).Inc()
	e.activity.Log(domain.ActivityEvent{
		Type:    domain.ActivityJobFailed,
		JobID:   jobID,
		Owner:   owner,
		Message: msg,
		At:      e.now(),
	})
	return cause
}
