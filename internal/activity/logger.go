// Package activity records audit events without blocking the request path.
package activity

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/metrics"
)

// Logger writes activity events as structured log entries from a background goroutine.
type Logger struct {
	events chan domain.ActivityEvent
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewLogger starts the drain goroutine. buffer is the number of events held before
// new ones are dropped.
func NewLogger(buffer int, logger *zap.Logger) *Logger {
	if buffer < 1 {
		buffer = 1
	}
	l := &Logger{
		events: make(chan domain.ActivityEvent, buffer),
		logger: logger.Named("activity"),
		done:   make(chan struct{}),
	}
	go l.drain()
	return l
}

// Log queues the event. It never blocks; when the buffer is full the event is dropped.
func (l *Logger) Log(event domain.ActivityEvent) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}

	select {
	case l.events <- event:
	default:
		metrics.ActivityDropped.Inc()
		l.logger.Warn("Activity buffer full, event dropped",
			zap.String("type", string(event.Type)),
			zap.String("job_id", event.JobID.String()),
		)
	}
}

// Close stops accepting events and waits until queued ones are written.
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.events)
	l.mu.Unlock()

	<-l.done
}

func (l *Logger) drain() {
	defer close(l.done)
	for event := range l.events {
		fields := []zap.Field{
			zap.String("type", string(event.Type)),
			zap.String("job_id", event.JobID.String()),
			zap.Time("at", event.At),
		}
		if event.Owner != nil {
			fields = append(fields,
				zap.String("org_id", event.Owner.OrgID),
				zap.String("user_id", event.Owner.UserID),
			)
		}
		if event.ItemCount > 0 {
			fields = append(fields, zap.Int("item_count", event.ItemCount))
		}
		if event.Message != "" {
			fields = append(fields, zap.String("message", event.Message))
		}
		l.logger.Info("Activity", fields...)
	}
}
