// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrRunNotFound indicates a run was not found by the given identifier.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunAlreadyActive indicates a non-terminal run already exists for the
	// campaign; the rejected create mutated no state.
	ErrRunAlreadyActive = errors.New("run already active for campaign")

	// ErrVersionConflict indicates a conditional write lost the race; the
	// caller must re-read the run before retrying.
	ErrVersionConflict = errors.New("run version conflict")

	// ErrRunTerminal indicates an attempted mutation of a terminal run.
	ErrRunTerminal = errors.New("run is terminal")

	// ErrCampaignNotFound indicates a campaign was not found.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrAlertNotFound indicates an alert was not found.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrReportNotFound indicates a report artifact was not found.
	ErrReportNotFound = errors.New("report artifact not found")
)

// RunError wraps run-related errors with operation context.
type RunError struct {
	Op    string // Operation being performed (e.g. "Create", "Save", "GetByID")
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRunError creates a new run error with context.
func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

// IsRunNotFound checks if an error indicates a run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsRunAlreadyActive checks if an error indicates the single-flight invariant
// rejected a run create.
func IsRunAlreadyActive(err error) bool {
	return errors.Is(err, ErrRunAlreadyActive)
}

// IsVersionConflict checks if an error indicates a lost conditional write.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsCampaignNotFound checks if an error indicates a campaign was not found.
func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

// IsAlertNotFound checks if an error indicates an alert was not found.
func IsAlertNotFound(err error) bool {
	return errors.Is(err, ErrAlertNotFound)
}
