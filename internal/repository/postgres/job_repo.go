package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/repository"
)

// Ensure pgJobRepo implements repository.JobRepository.
var _ repository.JobRepository = (*pgJobRepo)(nil)

type pgJobRepo struct {
	pool   *pgxpool.Pool
	ttl    time.Duration
	logger *zap.Logger
}

// NewPostgresJobRepository creates a PostgreSQL-backed job store holding each record as JSONB.
// Rows become invisible after ttl when ttl > 0.
func NewPostgresJobRepository(pool *pgxpool.Pool, ttl time.Duration, logger *zap.Logger) repository.JobRepository {
	return &pgJobRepo{pool: pool, ttl: ttl, logger: logger}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("postgres: %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func (r *pgJobRepo) expiresAt(now time.Time) *time.Time {
	if r.ttl <= 0 {
		return nil
	}
	t := now.Add(r.ttl)
	return &t
}

func (r *pgJobRepo) Save(ctx context.Context, job *domain.Job) error {
	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("postgres: marshal job: %w", err)
	}

	query := `
		INSERT INTO verification_jobs (job_id, status, record, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.pool.Exec(ctx, query,
		job.ID, job.Status, record, job.CreatedAt, job.UpdatedAt, r.expiresAt(job.CreatedAt),
	)
	if err != nil {
		return storeErr("save job", err)
	}
	return nil
}

func (r *pgJobRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT record FROM verification_jobs
		WHERE job_id = $1 AND (expires_at IS NULL OR expires_at > now())`

	var record []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, storeErr("get job", err)
	}
	return decodeJob(record)
}

func (r *pgJobRepo) Update(ctx context.Context, id uuid.UUID, patch domain.JobPatch) (*domain.Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin update", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var record []byte
	err = tx.QueryRow(ctx, `
		SELECT record FROM verification_jobs
		WHERE job_id = $1 AND (expires_at IS NULL OR expires_at > now())
		FOR UPDATE`, id).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, storeErr("lock job", err)
	}

	job, err := decodeJob(record)
	if err != nil {
		return nil, err
	}
	if err := job.Apply(patch, time.Now().UTC()); err != nil {
		return nil, err
	}

	next, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal job: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE verification_jobs SET status = $1, record = $2, updated_at = $3 WHERE job_id = $4`,
		job.Status, next, job.UpdatedAt, id,
	)
	if err != nil {
		return nil, storeErr("update job", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit update", err)
	}
	return job, nil
}

func (r *pgJobRepo) Delete(ctx context.Context, id uuid.UUID) {
	if _, err := r.pool.Exec(ctx, `DELETE FROM verification_jobs WHERE job_id = $1`, id); err != nil {
		r.logger.Warn("Failed to delete job", zap.String("job_id", id.String()), zap.Error(err))
	}
}

func (r *pgJobRepo) ListCreatedBefore(ctx context.Context, cutoff time.Time, offset, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT job_id FROM verification_jobs
		WHERE created_at < $1
		ORDER BY created_at
		OFFSET $2 LIMIT $3`, cutoff, offset, limit)
	if err != nil {
		return nil, storeErr("list jobs", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, storeErr("scan job ids", err)
	}
	return ids, nil
}

func (r *pgJobRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func decodeJob(record []byte) (*domain.Job, error) {
	job := &domain.Job{}
	if err := json.Unmarshal(record, job); err != nil {
		return nil, fmt.Errorf("postgres: decode job: %w", err)
	}
	return job, nil
}
