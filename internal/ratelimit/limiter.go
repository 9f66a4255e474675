// Package ratelimit provides per-client request admission control for public endpoints.
//
// Each Class is a fixed-duration window counted per client identity. The window opens on the
// first request and resets once it has elapsed.
package ratelimit

import (
	"context"
	"time"
)

// Class is a named limit applied to one group of endpoints.
type Class struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter admits or rejects a request for a client identity under a class.
type Limiter interface {
	Allow(ctx context.Context, class Class, identity string) (Decision, error)
}

func key(class Class, identity string) string {
	return class.Name + ":" + identity
}

func decide(class Class, count int, resetAt, now time.Time) Decision {
	d := Decision{
		Allowed: count <= class.Limit,
		Limit:   class.Limit,
		ResetAt: resetAt,
	}
	if remaining := class.Limit - count; remaining > 0 {
		d.Remaining = remaining
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
		if d.RetryAfter < 0 {
			d.RetryAfter = 0
		}
	}
	return d
}
