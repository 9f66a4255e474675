package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Harsh-BH/bulkcheck/internal/repository"
)

var _ repository.IdempotencyStore = (*redisIdempotency)(nil)

const lockKeyPrefix = "bulkcheck:lock:"

// KEYS[1] = lock key, ARGV[1] = owner token, ARGV[2] = ttl in milliseconds.
var refreshLockScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// KEYS[1] = lock key, ARGV[1] = owner token.
var releaseLockScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type redisIdempotency struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed execution lock using SET NX.
// ttl bounds how long a crashed worker can hold a job; holders refresh it as they progress.
func NewRedisIdempotencyStore(client *goredis.Client, ttl time.Duration) repository.IdempotencyStore {
	return &redisIdempotency{client: client, ttl: ttl}
}

func lockKey(jobID uuid.UUID) string {
	return lockKeyPrefix + jobID.String()
}

// AcquireLock uses Redis SETNX to atomically acquire a processing lock for owner.
func (r *redisIdempotency) AcquireLock(ctx context.Context, jobID uuid.UUID, owner string) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKey(jobID), owner, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

// RefreshLock resets the TTL while owner still holds the lock.
func (r *redisIdempotency) RefreshLock(ctx context.Context, jobID uuid.UUID, owner string) (bool, error) {
	n, err := refreshLockScript.Run(ctx, r.client, []string{lockKey(jobID)}, owner, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis: refresh lock: %w", err)
	}
	return n == 1, nil
}

// ReleaseLock deletes the lock if owner still holds it.
func (r *redisIdempotency) ReleaseLock(ctx context.Context, jobID uuid.UUID, owner string) error {
	if err := releaseLockScript.Run(ctx, r.client, []string{lockKey(jobID)}, owner).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}
