// Package registry maps step type identifiers to their factories.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/adopshq/adflow/pkg/protocol"
)

type Registry struct {
	logger        *slog.Logger
	stepFactories map[string]protocol.StepFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:        log,
		stepFactories: make(map[string]protocol.StepFactory),
	}
}

func (r *Registry) RegisterStep(stepFactory protocol.StepFactory) {
	r.stepFactories[stepFactory.ID()] = stepFactory
}

func (r *Registry) CreateStep(stepType string, config map[string]any) (protocol.Step, error) {
	factory, ok := r.stepFactories[stepType]
	if !ok {
		return nil, fmt.Errorf("step type '%s' not registered", stepType)
	}

	return factory.Create(config)
}

// AvailableSteps returns all registered step type identifiers.
func (r *Registry) AvailableSteps() []string {
	types := make([]string, 0, len(r.stepFactories))
	for stepType := range r.stepFactories {
		types = append(types, stepType)
	}

	return types
}
