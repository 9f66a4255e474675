package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "bulkcheck:ratelimit:"

// windowScript increments the counter and opens the window on the first hit.
// Expiry replaces any manual sweep.
var windowScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {current, ttl}
`)

// RedisLimiter shares counters across instances through Redis.
type RedisLimiter struct {
	redis redis.Cmdable
	now   func() time.Time
}

// NewRedisLimiter creates a limiter backed by the given Redis client.
func NewRedisLimiter(client redis.Cmdable) *RedisLimiter {
	return &RedisLimiter{redis: client, now: time.Now}
}

// Allow counts the request atomically and reports whether it fits the class limit.
func (l *RedisLimiter) Allow(ctx context.Context, class Class, identity string) (Decision, error) {
	windowMs := class.Window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	res, err := windowScript.Run(ctx, l.redis, []string{redisKeyPrefix + key(class, identity)}, windowMs).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: redis: unexpected reply length %d", len(res))
	}

	now := l.now()
	resetAt := now.Add(time.Duration(res[1]) * time.Millisecond)
	return decide(class, int(res[0]), resetAt, now), nil
}
