// Package steps provides shared helpers for agent step implementations.
package steps

import (
	"fmt"

	"github.com/adopshq/adflow/pkg/graph"
)

// Transientf classifies a step failure as retryable.
func Transientf(format string, args ...any) error {
	return &graph.TransientError{Err: fmt.Errorf(format, args...)}
}

// Permanentf classifies a step failure as non-retryable. The run fails
// without further attempts.
func Permanentf(format string, args ...any) error {
	return &graph.PermanentError{Err: fmt.Errorf(format, args...)}
}
