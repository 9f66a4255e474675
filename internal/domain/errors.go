package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found or the caller may not see it.
	ErrJobNotFound = errors.New("job not found")

	// ErrNoItems is returned when a job request has no usable items.
	ErrNoItems = errors.New("at least one email address is required")

	// ErrTooManyItems is returned when a job request exceeds the configured maximum.
	ErrTooManyItems = errors.New("too many email addresses in one job")

	// ErrInvalidItem is returned when an item is not a plausible email address.
	ErrInvalidItem = errors.New("invalid email address")

	// ErrResultsNotReady is returned when results are requested before completion.
	ErrResultsNotReady = errors.New("results are not available until the job completes")

	// ErrInsufficientCredits is returned when an organization cannot pay for a job.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrDispatchFailed is returned when a job could not be handed to the executor.
	ErrDispatchFailed = errors.New("failed to schedule job for processing")

	// ErrStoreUnavailable is returned when the job store cannot be reached.
	ErrStoreUnavailable = errors.New("job store is currently unavailable")

	// ErrInvalidTransition is returned when a status change would move a job backwards.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrResultsRegressed is returned when an update would shrink or overflow results.
	ErrResultsRegressed = errors.New("job results must grow monotonically up to the item count")

	// ErrJobLocked is returned when another execution holds a non-terminal job.
	ErrJobLocked = errors.New("job is being executed elsewhere")

	// ErrRateLimitExceeded is returned when a client exceeds its request quota.
	ErrRateLimitExceeded = errors.New("rate limit exceeded, try again later")
)

// ValidationError adds detail to a validation sentinel.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TransitionError reports a rejected status change.
type TransitionError struct {
	From JobStatus
	To   JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// QuotaError carries the numbers behind ErrInsufficientCredits.
type QuotaError struct {
	Required  int
	Remaining int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %d required, %d remaining", ErrInsufficientCredits, e.Required, e.Remaining)
}

func (e *QuotaError) Unwrap() error { return ErrInsufficientCredits }
