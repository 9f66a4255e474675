package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/repository"
)

var _ repository.JobRepository = (*redisJobRepo)(nil)

const (
	jobKeyPrefix     = "bulkcheck:job:"
	createdIndexKey  = "bulkcheck:jobs:created"
	maxUpdateRetries = 5
)

var errContention = errors.New("too many concurrent writers")

type redisJobRepo struct {
	client *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisJobRepository creates a Redis-backed job store. Records expire after ttl when ttl > 0.
func NewRedisJobRepository(client *goredis.Client, ttl time.Duration, logger *zap.Logger) repository.JobRepository {
	return &redisJobRepo{client: client, ttl: ttl, logger: logger}
}

func jobKey(id uuid.UUID) string {
	return jobKeyPrefix + id.String()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("redis: %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func (r *redisJobRepo) Save(ctx context.Context, job *domain.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redis: marshal job: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, jobKey(job.ID), body, r.ttl)
		pipe.ZAdd(ctx, createdIndexKey, goredis.Z{
			Score:  float64(job.CreatedAt.UnixMilli()),
			Member: job.ID.String(),
		})
		return nil
	})
	if err != nil {
		return storeErr("save job", err)
	}
	return nil
}

func (r *redisJobRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	raw, err := r.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, storeErr("get job", err)
	}
	return decodeJob(raw)
}

func (r *redisJobRepo) Update(ctx context.Context, id uuid.UUID, patch domain.JobPatch) (*domain.Job, error) {
	key := jobKey(id)
	var updated *domain.Job

	txf := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return domain.ErrJobNotFound
		}
		if err != nil {
			return storeErr("get job", err)
		}

		job, err := decodeJob(raw)
		if err != nil {
			return err
		}
		if err := job.Apply(patch, time.Now().UTC()); err != nil {
			return err
		}
		body, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("redis: marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.SetArgs(ctx, key, body, goredis.SetArgs{KeepTTL: true})
			return nil
		})
		if err != nil {
			return err
		}
		updated = job
		return nil
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, goredis.TxFailedErr):
			r.logger.Debug("Optimistic update conflict, retrying",
				zap.String("job_id", id.String()),
				zap.Int("attempt", attempt+1),
			)
			continue
		case isDomainErr(err):
			return nil, err
		default:
			return nil, storeErr("update job", err)
		}
	}
	return nil, storeErr("update job", errContention)
}

func (r *redisJobRepo) Delete(ctx context.Context, id uuid.UUID) {
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, jobKey(id))
		pipe.ZRem(ctx, createdIndexKey, id.String())
		return nil
	})
	if err != nil {
		r.logger.Warn("Failed to delete job", zap.String("job_id", id.String()), zap.Error(err))
	}
}

func (r *redisJobRepo) ListCreatedBefore(ctx context.Context, cutoff time.Time, offset, limit int) ([]uuid.UUID, error) {
	members, err := r.client.ZRangeByScore(ctx, createdIndexKey, &goredis.ZRangeBy{
		Min:    "-inf",
		Max:    "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
		Offset: int64(offset),
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, storeErr("list jobs", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			r.logger.Warn("Skipping malformed index entry", zap.String("member", m))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *redisJobRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decodeJob(raw []byte) (*domain.Job, error) {
	job := &domain.Job{}
	if err := json.Unmarshal(raw, job); err != nil {
		return nil, fmt.Errorf("redis: decode job: %w", err)
	}
	return job, nil
}

func isDomainErr(err error) bool {
	return errors.Is(err, domain.ErrJobNotFound) ||
		errors.Is(err, domain.ErrStoreUnavailable) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrResultsRegressed)
}
