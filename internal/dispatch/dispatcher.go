// Package dispatch hands persisted jobs to the batch executor, either through an
// in-process queue or through RabbitMQ.
package dispatch

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

// ErrQueueFull is returned by the local dispatcher when no slot is free.
var ErrQueueFull = errors.New("dispatch: queue is full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("dispatch: dispatcher closed")

// Dispatcher defines the interface for scheduling a job for background execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *domain.Job) error
	Close() error
}

// Task is the queue message body.
type Task struct {
	JobID uuid.UUID `json:"jobId"`
}
