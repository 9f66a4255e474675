package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/dispatch"
	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/metrics"
	"github.com/Harsh-BH/bulkcheck/internal/repository"
)

const (
	defaultMaxItems  = 10000
	maxItemLength    = 254
	accessTokenBytes = 32
)

// CreateJobUsecase validates a bulk request, persists the job and hands it to the dispatcher.
type CreateJobUsecase struct {
	repo       repository.JobRepository
	dispatcher dispatch.Dispatcher
	credits    repository.CreditRepository
	activity   ActivityLogger
	maxItems   int
	logger     *zap.Logger
}

// NewCreateJobUsecase creates a new CreateJobUsecase. A nil credits repository means
// unlimited credits and a nil activity logger discards events.
func NewCreateJobUsecase(
	repo repository.JobRepository,
	dispatcher dispatch.Dispatcher,
	credits repository.CreditRepository,
	activity ActivityLogger,
	maxItems int,
	logger *zap.Logger,
) *CreateJobUsecase {
	if credits == nil {
		credits = UnlimitedCredits{}
	}
	if activity == nil {
		activity = nopActivity{}
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	return &CreateJobUsecase{
		repo:       repo,
		dispatcher: dispatcher,
		credits:    credits,
		activity:   activity,
		maxItems:   maxItems,
		logger:     logger,
	}
}

// Execute creates a pending job and schedules it. It returns as soon as the job is
// dispatched; verification happens in the background.
func (uc *CreateJobUsecase) Execute(ctx context.Context, req *domain.CreateJobRequest, owner *domain.Owner) (*domain.CreateJobResponse, error) {
	items, err := normalizeItems(req.Items)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrNoItems
	}
	if len(items) > uc.maxItems {
		return nil, &domain.ValidationError{
			Err:    domain.ErrTooManyItems,
			Detail: fmt.Sprintf("%d submitted, maximum is %d", len(items), uc.maxItems),
		}
	}

	if owner != nil {
		quota, err := uc.credits.CheckQuota(ctx, owner.OrgID, len(items))
		if err != nil {
			return nil, fmt.Errorf("check quota: %w", err)
		}
		if !quota.Allowed {
			return nil, &domain.QuotaError{Required: quota.Required, Remaining: quota.Remaining}
		}
	}

	jobID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	var options domain.VerifyOptions
	if req.Options != nil {
		options = *req.Options
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:        jobID,
		Status:    domain.StatusPending,
		Items:     items,
		Options:   options,
		Results:   []domain.Verdict{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	var mode string
	if owner != nil {
		o := *owner
		job.Owner = &o
		mode = "owner"
	} else {
		token, err := generateAccessToken()
		if err != nil {
			return nil, fmt.Errorf("generate access token: %w", err)
		}
		job.AccessToken = token
		mode = "token"
	}

	if err := uc.repo.Save(ctx, job); err != nil {
		uc.logger.Error("Failed to save job", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, fmt.Errorf("save job: %w", err)
	}

	if err := uc.dispatcher.Dispatch(ctx, job); err != nil {
		uc.logger.Error("Failed to dispatch job", zap.Error(err), zap.String("job_id", jobID.String()))
		failed := domain.StatusFailed
		msg := domain.ErrDispatchFailed.Error()
		if _, uerr := uc.repo.Update(ctx, jobID, domain.JobPatch{Status: &failed, ErrorMessage: &msg}); uerr != nil {
			uc.logger.Error("Failed to mark undispatched job as failed", zap.Error(uerr), zap.String("job_id", jobID.String()))
		}
		metrics.JobsFinished.WithLabelValues(string(domain.StatusFailed)).Inc()
		return nil, domain.ErrDispatchFailed
	}

	metrics.JobsCreated.WithLabelValues(mode).Inc()
	uc.activity.Log(domain.ActivityEvent{
		Type:      domain.ActivityJobCreated,
		JobID:     jobID,
		Owner:     job.Owner,
		ItemCount: len(items),
		At:        now,
	})

	uc.logger.Info("Bulk job created",
		zap.String("job_id", jobID.String()),
		zap.Int("item_count", len(items)),
		zap.String("mode", mode),
	)

	return &domain.CreateJobResponse{
		Success:     true,
		JobID:       jobID,
		AccessToken: job.AccessToken,
		Status:      domain.StatusPending,
		ItemCount:   len(items),
	}, nil
}

// normalizeItems trims entries, drops blanks and duplicates (case-insensitive) and
// rejects values that cannot be an address.
func normalizeItems(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	items := make([]string, 0, len(raw))
	for i, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if len(item) > maxItemLength || !strings.Contains(item, "@") {
			return nil, &domain.ValidationError{
				Err:    domain.ErrInvalidItem,
				Detail: fmt.Sprintf("item %d", i),
			}
		}
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, item)
	}
	return items, nil
}

func generateAccessToken() (string, error) {
	buf := make([]byte, accessTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
