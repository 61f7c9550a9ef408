// Package protocol defines the interfaces and contracts for agent steps and
// the external capabilities they consume.
package protocol

import (
	"context"
	"log/slog"

	"github.com/adopshq/adflow/pkg/models"
)

// RunContext is the per-run view a step executes against. The context map is
// the snapshot the engine recorded for this attempt; steps must tolerate
// re-execution with the same snapshot.
type RunContext struct {
	RunID      string
	CampaignID string
	Context    map[string]any
	Logger     *slog.Logger
}

// Value reads a context entry, nil when absent.
func (rc RunContext) Value(key string) any {
	if rc.Context == nil {
		return nil
	}

	return rc.Context[key]
}

// String reads a string context entry.
func (rc RunContext) String(key string) string {
	s, _ := rc.Value(key).(string)

	return s
}

// Step is a unit of orchestrated work within a run. Execute returns a
// structured outcome for edge routing, or an error classified by the graph
// error taxonomy (transient errors are retried, anything else fails the run).
type Step interface {
	// Name returns the node name this step registers under.
	Name() string

	// Execute performs the step against the run context.
	Execute(ctx context.Context, rc RunContext) (*models.StepOutcome, error)
}

// StepFactory creates step instances from configuration.
type StepFactory interface {
	// ID returns the unique identifier for this step type
	ID() string

	// Create creates a new step instance with the given configuration
	Create(config map[string]any) (Step, error)
}
