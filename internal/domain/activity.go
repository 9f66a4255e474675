package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityType names an auditable event.
type ActivityType string

const (
	ActivityJobCreated   ActivityType = "bulk_job.created"
	ActivityJobCompleted ActivityType = "bulk_job.completed"
	ActivityJobFailed    ActivityType = "bulk_job.failed"
)

// ActivityEvent is handed to the activity logger.
type ActivityEvent struct {
	Type      ActivityType
	JobID     uuid.UUID
	Owner     *Owner
	ItemCount int
	Message   string
	At        time.Time
}

// Quota is the answer of a credit check.
type Quota struct {
	Allowed   bool
	Remaining int
	Required  int
}
