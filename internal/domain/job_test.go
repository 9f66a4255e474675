package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestJob(items ...string) *Job {
	return &Job{
		ID:          uuid.New(),
		Status:      StatusPending,
		Items:       items,
		AccessToken: "secret",
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func statusPtr(s JobStatus) *JobStatus { return &s }

func TestApply_ForwardTransitions(t *testing.T) {
	job := newTestJob("a@example.com", "b@example.com")
	now := time.Now().UTC()

	if err := job.Apply(JobPatch{Status: statusPtr(StatusProcessing), StartedAt: &now}, now); err != nil {
		t.Fatalf("pending -> processing: %v", err)
	}
	if job.StartedAt == nil {
		t.Fatal("expected startedAt to be set")
	}

	results := []Verdict{{Email: "a@example.com", State: StateDeliverable}}
	if err := job.Apply(JobPatch{Results: results}, now); err != nil {
		t.Fatalf("progress write: %v", err)
	}

	results = append(results, Verdict{Email: "b@example.com", State: StateRisky})
	stats := &Stats{Total: 2}
	err := job.Apply(JobPatch{Status: statusPtr(StatusCompleted), Results: results, Stats: stats}, now)
	if err != nil {
		t.Fatalf("processing -> completed: %v", err)
	}
	if job.CompletedAt == nil {
		t.Error("expected completedAt to be set")
	}
	if job.Stats == nil || job.Stats.Total != 2 {
		t.Errorf("expected stats to be stored, got %+v", job.Stats)
	}
}

func TestApply_RejectsRegression(t *testing.T) {
	job := newTestJob("a@example.com")
	now := time.Now().UTC()
	_ = job.Apply(JobPatch{Status: statusPtr(StatusProcessing)}, now)
	msg := "boom"
	if err := job.Apply(JobPatch{Status: statusPtr(StatusFailed), ErrorMessage: &msg}, now); err != nil {
		t.Fatalf("processing -> failed: %v", err)
	}

	err := job.Apply(JobPatch{Status: statusPtr(StatusProcessing)}, now)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if job.Status != StatusFailed {
		t.Errorf("job should stay failed, got %s", job.Status)
	}
	if job.ErrorMessage != "boom" {
		t.Errorf("expected error message to survive, got %q", job.ErrorMessage)
	}
}

func TestApply_PendingCannotSkipToCompleted(t *testing.T) {
	job := newTestJob("a@example.com")
	err := job.Apply(JobPatch{
		Status:  statusPtr(StatusCompleted),
		Results: []Verdict{{Email: "a@example.com"}},
	}, time.Now())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestApply_ResultsMustGrow(t *testing.T) {
	job := newTestJob("a@example.com", "b@example.com")
	now := time.Now()
	_ = job.Apply(JobPatch{Status: statusPtr(StatusProcessing)}, now)
	_ = job.Apply(JobPatch{Results: []Verdict{{}, {}}}, now)

	if err := job.Apply(JobPatch{Results: []Verdict{{}}}, now); !errors.Is(err, ErrResultsRegressed) {
		t.Errorf("expected ErrResultsRegressed for shrink, got %v", err)
	}
	if err := job.Apply(JobPatch{Results: []Verdict{{}, {}, {}}}, now); !errors.Is(err, ErrResultsRegressed) {
		t.Errorf("expected ErrResultsRegressed for overflow, got %v", err)
	}
}

func TestApply_CompletedRequiresAllResults(t *testing.T) {
	job := newTestJob("a@example.com", "b@example.com")
	now := time.Now()
	_ = job.Apply(JobPatch{Status: statusPtr(StatusProcessing)}, now)
	err := job.Apply(JobPatch{Status: statusPtr(StatusCompleted), Results: []Verdict{{}}}, now)
	if !errors.Is(err, ErrResultsRegressed) {
		t.Errorf("expected ErrResultsRegressed, got %v", err)
	}
	if job.Status != StatusProcessing {
		t.Errorf("job should be unchanged, got %s", job.Status)
	}
}

func TestApply_CompletedAtSetOnce(t *testing.T) {
	job := newTestJob("a@example.com")
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = job.Apply(JobPatch{Status: statusPtr(StatusFailed)}, first)

	_ = job.Apply(JobPatch{Status: statusPtr(StatusFailed)}, first.Add(time.Hour))
	if !job.CompletedAt.Equal(first) {
		t.Errorf("completedAt changed to %v", job.CompletedAt)
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	if StatusPending.IsTerminal() || StatusProcessing.IsTerminal() {
		t.Error("pending/processing must not be terminal")
	}
	if !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("completed/failed must be terminal")
	}
}
