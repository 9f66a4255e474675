package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a bulk verification job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid reports whether s is one of the known statuses.
func (s JobStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether a job in status s may move to next.
// Staying in the same non-terminal status is allowed (progress writes).
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusPending || next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusProcessing || next == StatusCompleted || next == StatusFailed
	}
	return false
}

// Owner identifies the organization and user that created an authenticated job.
type Owner struct {
	OrgID  string `json:"orgId"`
	UserID string `json:"userId"`
}

// Job is the persisted record of a bulk verification request.
//
// Exactly one of AccessToken and Owner is set.
type Job struct {
	ID           uuid.UUID     `json:"id"`
	Status       JobStatus     `json:"status"`
	Items        []string      `json:"items"`
	Options      VerifyOptions `json:"options"`
	Results      []Verdict     `json:"results"`
	Stats        *Stats        `json:"stats,omitempty"`
	AccessToken  string        `json:"accessToken,omitempty"`
	Owner        *Owner        `json:"owner,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	StartedAt    *time.Time    `json:"startedAt,omitempty"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty"`
}

// IsAnonymous reports whether the job was created through the public flow.
func (j *Job) IsAnonymous() bool {
	return j.Owner == nil
}

// Processed returns the number of items that already have a verdict.
func (j *Job) Processed() int {
	return len(j.Results)
}

// Total returns the number of submitted items.
func (j *Job) Total() int {
	return len(j.Items)
}

// Clone returns a deep copy of the job so callers can mutate it freely.
func (j *Job) Clone() *Job {
	c := *j
	c.Items = append([]string(nil), j.Items...)
	c.Results = append([]Verdict(nil), j.Results...)
	if j.Stats != nil {
		s := *j.Stats
		c.Stats = &s
	}
	if j.Owner != nil {
		o := *j.Owner
		c.Owner = &o
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// JobPatch carries the fields of a partial update. Nil fields are left untouched.
// Results, when non-nil, replaces the stored slice and must not shrink it.
type JobPatch struct {
	Status       *JobStatus
	Results      []Verdict
	Stats        *Stats
	ErrorMessage *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Apply merges p onto j, enforcing the job invariants. j is left unchanged on error.
func (j *Job) Apply(p JobPatch, now time.Time) error {
	next := j.Clone()

	if p.Status != nil {
		if !j.Status.CanTransitionTo(*p.Status) {
			return &TransitionError{From: j.Status, To: *p.Status}
		}
		next.Status = *p.Status
	} else if j.Status.IsTerminal() {
		return &TransitionError{From: j.Status, To: j.Status}
	}

	if p.Results != nil {
		if len(p.Results) < len(j.Results) || len(p.Results) > len(j.Items) {
			return ErrResultsRegressed
		}
		next.Results = append([]Verdict(nil), p.Results...)
	}
	if p.StartedAt != nil && next.StartedAt == nil {
		t := *p.StartedAt
		next.StartedAt = &t
	}
	if p.ErrorMessage != nil {
		next.ErrorMessage = *p.ErrorMessage
	}
	if p.Stats != nil {
		s := *p.Stats
		next.Stats = &s
	}

	if next.Status.IsTerminal() {
		if next.CompletedAt == nil {
			t := now
			if p.CompletedAt != nil {
				t = *p.CompletedAt
			}
			next.CompletedAt = &t
		}
	}
	if next.Status == StatusCompleted && len(next.Results) != len(next.Items) {
		return ErrResultsRegressed
	}
	if next.Status != StatusCompleted {
		next.Stats = nil
	}
	if next.Status != StatusFailed {
		next.ErrorMessage = ""
	}

	next.UpdatedAt = now
	*j = *next
	return nil
}

// CreateJobRequest is the body accepted when creating a bulk job.
type CreateJobRequest struct {
	Items   []string       `json:"items" binding:"required"`
	Options *VerifyOptions `json:"options,omitempty"`
}

// CreateJobResponse is returned after a job is accepted.
type CreateJobResponse struct {
	Success     bool      `json:"success"`
	JobID       uuid.UUID `json:"jobId"`
	AccessToken string    `json:"accessToken,omitempty"`
	Status      JobStatus `json:"status"`
	ItemCount   int       `json:"itemCount"`
}

// JobStatusView is the polling view of a job.
type JobStatusView struct {
	Success         bool       `json:"success"`
	ID              uuid.UUID  `json:"id"`
	Status          JobStatus  `json:"status"`
	Total           int        `json:"total"`
	Processed       int        `json:"processed"`
	ProgressPercent int        `json:"progressPercent"`
	Stats           *Stats     `json:"stats,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Pagination describes a page of results.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// JobResultsView is a page of verdicts for a completed job.
type JobResultsView struct {
	Success    bool       `json:"success"`
	Results    []Verdict  `json:"results"`
	Stats      *Stats     `json:"stats"`
	Pagination Pagination `json:"pagination"`
}

// Access carries whatever the caller presented to read a job.
type Access struct {
	Token string
	Owner *Owner
}

// JobMessage wraps a job id with acknowledgement callbacks from the delivery layer.
type JobMessage struct {
	JobID uuid.UUID
	Ack   func() error
	Nack  func(requeue bool) error
}
