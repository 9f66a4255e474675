// Package reaper fails jobs abandoned mid-run and deletes finished jobs past retention.
package reaper

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/metrics"
	"github.com/Harsh-BH/bulkcheck/internal/repository"
)

// StaleMessage is stored on jobs failed by the reaper.
const StaleMessage = "job interrupted before completion"

const defaultPageSize = 500

// Config controls the sweep.
type Config struct {
	Interval time.Duration

	// StaleAfter fails non-terminal jobs not updated for this long.
	StaleAfter time.Duration

	// Retention deletes terminal jobs completed longer ago than this. Zero keeps them.
	Retention time.Duration

	PageSize int
}

// Result counts what one sweep did.
type Result struct {
	Scanned int
	Failed  int
	Deleted int
}

// Reaper walks the store's creation index.
type Reaper struct {
	repo   repository.JobRepository
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Reaper.
func New(repo repository.JobRepository, cfg Config, logger *zap.Logger) *Reaper {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Reaper{
		repo:   repo,
		cfg:    cfg,
		logger: logger.Named("reaper"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps immediately and then every Interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	if r.cfg.Interval <= 0 {
		r.logger.Info("Reaper disabled")
		return
	}
	r.logger.Info("Starting reaper",
		zap.Duration("interval", r.cfg.Interval),
		zap.Duration("stale_after", r.cfg.StaleAfter),
		zap.Duration("retention", r.cfg.Retention),
	)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("Reaper sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("Reaper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep performs one pass.
func (r *Reaper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	now := r.now()

	horizon := r.cfg.StaleAfter
	if r.cfg.Retention > 0 && (horizon <= 0 || r.cfg.Retention < horizon) {
		horizon = r.cfg.Retention
	}
	if horizon <= 0 {
		return res, nil
	}
	cutoff := now.Add(-horizon)

	offset := 0
	for {
		ids, err := r.repo.ListCreatedBefore(ctx, cutoff, offset, r.cfg.PageSize)
		if err != nil {
			return res, err
		}

		deleted := 0
		for _, id := range ids {
			res.Scanned++
			action, err := r.reap(ctx, id, now)
			if err != nil {
				r.logger.Warn("Failed to reap job", zap.String("job_id", id.String()), zap.Error(err))
				continue
			}
			switch action {
			case actionFailed:
				res.Failed++
			case actionDeleted:
				res.Deleted++
				deleted++
			}
		}

		if len(ids) < r.cfg.PageSize {
			break
		}
		offset += len(ids) - deleted
	}

	if res.Failed > 0 || res.Deleted > 0 {
		r.logger.Info("Reaper sweep finished",
			zap.Int("scanned", res.Scanned),
			zap.Int("failed", res.Failed),
			zap.Int("deleted", res.Deleted),
		)
	}
	return res, nil
}

type action int

const (
	actionNone action = iota
	actionFailed
	actionDeleted
)

func (r *Reaper) reap(ctx context.Context, id uuid.UUID, now time.Time) (action, error) {
	job, err := r.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return actionNone, nil
		}
		return actionNone, err
	}

	if !job.Status.IsTerminal() {
		if r.cfg.StaleAfter <= 0 || now.Sub(job.UpdatedAt) < r.cfg.StaleAfter {
			return actionNone, nil
		}
		failed := domain.StatusFailed
		msg := StaleMessage
		if _, err := r.repo.Update(ctx, id, domain.JobPatch{Status: &failed, ErrorMessage: &msg}); err != nil {
			// Lost a race with a live executor finishing the job.
			if errors.Is(err, domain.ErrInvalidTransition) {
				return actionNone, nil
			}
			return actionNone, err
		}
		metrics.JobsReaped.WithLabelValues("failed").Inc()
		metrics.JobsFinished.WithLabelValues(string(domain.StatusFailed)).Inc()
		r.logger.Warn("Failed stale job",
			zap.String("job_id", id.String()),
			zap.String("status", string(job.Status)),
			zap.Time("updated_at", job.UpdatedAt),
		)
		return actionFailed, nil
	}

	if r.cfg.Retention <= 0 || job.CompletedAt == nil || now.Sub(*job.CompletedAt) < r.cfg.Retention {
		return actionNone, nil
	}
	r.repo.Delete(ctx, id)
	metrics.JobsReaped.WithLabelValues("deleted").Inc()
	return actionDeleted, nil
}
