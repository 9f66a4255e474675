package ratelimit

import (
	"context"
	"sync"
	"time"
)

// windowEntry tracks the request count of one client inside the current window.
type windowEntry struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

// MemoryLimiter keeps counters in process memory. Suitable for a single instance only.
type MemoryLimiter struct {
	mu      sync.Mutex
	clients map[string]*windowEntry
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryLimiter creates an in-memory limiter that evicts expired entries every sweepInterval.
func NewMemoryLimiter(sweepInterval time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		clients: make(map[string]*windowEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()

	return l
}

// Allow counts the request and reports whether it fits the class limit.
func (l *MemoryLimiter) Allow(ctx context.Context, class Class, identity string) (Decision, error) {
	k := key(class, identity)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, exists := l.clients[k]
	if !exists || now.Sub(entry.windowStart) >= class.Window {
		entry = &windowEntry{windowStart: now, window: class.Window}
		l.clients[k] = entry
	}

	// Rejected requests are not counted so Remaining never goes negative.
	if entry.count < class.Limit {
		entry.count++
		return decide(class, entry.count, entry.windowStart.Add(class.Window), now), nil
	}
	return decide(class, entry.count+1, entry.windowStart.Add(class.Window), now), nil
}

// Sweep removes entries whose window has elapsed.
func (l *MemoryLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, entry := range l.clients {
		if now.Sub(entry.windowStart) >= entry.window {
			delete(l.clients, k)
		}
	}
}

// Len returns the number of tracked clients.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Close stops the sweep goroutine.
func (l *MemoryLimiter) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}
