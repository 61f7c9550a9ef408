// Package graph implements the workflow graph model and execution engine.
package graph

import (
	"errors"
	"fmt"

	"github.com/adopshq/adflow/pkg/models"
)

// TransientError marks a step failure in the network/timeout class. The run
// coordinator retries it up to the configured attempt limit.
type TransientError struct {
	Node string
	Err  error
}

func (e *TransientError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("transient failure: %v", e.Err)
	}

	return fmt.Sprintf("transient failure at node %s: %v", e.Node, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable step failure.
func Transient(node string, err error) error {
	return &TransientError{Node: node, Err: err}
}

// Transientf formats a retryable step failure.
func Transientf(node, format string, args ...any) error {
	return &TransientError{Node: node, Err: fmt.Errorf(format, args...)}
}

// PermanentError marks a validation/business-rule rejection. It immediately
// terminates the run as Failed.
type PermanentError struct {
	Node string
	Err  error
}

func (e *PermanentError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("permanent failure: %v", e.Err)
	}

	return fmt.Sprintf("permanent failure at node %s: %v", e.Node, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as a non-retryable step failure.
func Permanent(node string, err error) error {
	return &PermanentError{Node: node, Err: err}
}

// RoutingError indicates no edge matched a step outcome and no default edge
// was declared. This is a graph configuration defect: the run fails and a
// system-error alert is raised.
type RoutingError struct {
	Node   string
	Signal models.Signal
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("no edge from node %s matches signal %q and no default edge declared", e.Node, e.Signal)
}

// CheckpointError indicates the state store rejected or failed a checkpoint
// write. The step is not marked complete; the advance is retried at the
// infrastructure layer after re-reading the run.
type CheckpointError struct {
	RunID string
	Err   error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint write failed for run %s: %v", e.RunID, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// IsTransient checks whether err is retryable (including checkpoint failures,
// which are retried at the infrastructure layer with the same policy).
func IsTransient(err error) bool {
	var te *TransientError

	return errors.As(err, &te) || IsCheckpoint(err)
}

// IsPermanent checks whether err is a non-retryable step failure.
func IsPermanent(err error) bool {
	var pe *PermanentError

	return errors.As(err, &pe)
}

// IsRouting checks whether err is a graph routing defect.
func IsRouting(err error) bool {
	var re *RoutingError

	return errors.As(err, &re)
}

// IsCheckpoint checks whether err is a checkpoint write failure.
func IsCheckpoint(err error) bool {
	var ce *CheckpointError

	return errors.As(err, &ce)
}
