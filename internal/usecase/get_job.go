package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/repository"
)

// Page size bounds per access mode.
const (
	anonymousDefaultLimit = 100
	anonymousMaxLimit     = 1000
	ownerDefaultLimit     = 50
	ownerMaxLimit         = 100
)

// GetJobUsecase answers status and results queries for jobs the caller may read.
type GetJobUsecase struct {
	repo   repository.JobRepository
	logger *zap.Logger
}

// NewGetJobUsecase creates a new GetJobUsecase.
func NewGetJobUsecase(repo repository.JobRepository, logger *zap.Logger) *GetJobUsecase {
	return &GetJobUsecase{
		repo:   repo,
		logger: logger,
	}
}

// Authorize loads the job and checks access. A missing job and a denied caller both
// yield domain.ErrJobNotFound; only store failures surface as other errors.
func (uc *GetJobUsecase) Authorize(ctx context.Context, id uuid.UUID, access domain.Access) (*domain.Job, error) {
	job, err := uc.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	if !canRead(job, access) {
		uc.logger.Debug("Job access denied", zap.String("job_id", id.String()))
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func canRead(job *domain.Job, access domain.Access) bool {
	if job.Owner != nil {
		return access.Owner != nil && access.Owner.OrgID != "" && access.Owner.OrgID == job.Owner.OrgID
	}
	if job.AccessToken == "" || access.Token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(job.AccessToken), []byte(access.Token)) == 1
}

// Status returns the polling view of a job.
func (uc *GetJobUsecase) Status(ctx context.Context, id uuid.UUID, access domain.Access) (*domain.JobStatusView, error) {
	job, err := uc.Authorize(ctx, id, access)
	if err != nil {
		return nil, err
	}
	return StatusView(job), nil
}

// StatusView derives the polling view from a job record.
func StatusView(job *domain.Job) *domain.JobStatusView {
	processed, total := job.Processed(), job.Total()
	progress := 0
	if total > 0 {
		progress = int(math.Round(float64(processed) / float64(total) * 100))
	}
	return &domain.JobStatusView{
		Success:         true,
		ID:              job.ID,
		Status:          job.Status,
		Total:           total,
		Processed:       processed,
		ProgressPercent: progress,
		Stats:           job.Stats,
		CreatedAt:       job.CreatedAt,
		CompletedAt:     job.CompletedAt,
		Error:           job.ErrorMessage,
	}
}

// Results returns one page of verdicts of a completed job. page is 1-based; zero or
// negative values select the defaults and oversized limits are clamped.
func (uc *GetJobUsecase) Results(ctx context.Context, id uuid.UUID, access domain.Access, page, limit int) (*domain.JobResultsView, error) {
	job, err := uc.Authorize(ctx, id, access)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusCompleted {
		return nil, domain.ErrResultsNotReady
	}

	page, limit = normalizePage(job.IsAnonymous(), page, limit)
	pageResults, pagination := paginate(job.Results, page, limit)

	return &domain.JobResultsView{
		Success:    true,
		Results:    pageResults,
		Stats:      job.Stats,
		Pagination: pagination,
	}, nil
}

func normalizePage(anonymous bool, page, limit int) (int, int) {
	defLimit, maxLimit := ownerDefaultLimit, ownerMaxLimit
	if anonymous {
		defLimit, maxLimit = anonymousDefaultLimit, anonymousMaxLimit
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// paginate returns results[(page-1)*limit : page*limit], clipped to the slice.
func paginate(results []domain.Verdict, page, limit int) ([]domain.Verdict, domain.Pagination) {
	total := len(results)
	p := domain.Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: (total + limit - 1) / limit,
	}

	if page > p.Pages {
		return []domain.Verdict{}, p
	}
	start := (page - 1) * limit
	end := min(start+limit, total)
	return append([]domain.Verdict(nil), results[start:end]...), p
}
