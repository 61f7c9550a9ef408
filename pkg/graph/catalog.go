package graph

import (
	"fmt"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/registry"
)

// Built-in graph names.
const (
	GraphMonitoring = "campaign_monitoring"
	GraphCreation   = "campaign_creation"
)

// Catalog builds the built-in workflow graphs from registered steps and
// validates each one. Graph construction happens once at startup; a defect
// here is a configuration error, not a runtime condition.
func Catalog(reg *registry.Registry) (map[string]*Graph, error) {
	monitoring, err := BuildMonitoringGraph(reg)
	if err != nil {
		return nil, err
	}

	creation, err := BuildCreationGraph(reg)
	if err != nil {
		return nil, err
	}

	return map[string]*Graph{
		GraphMonitoring: monitoring,
		GraphCreation:   creation,
	}, nil
}

// BuildMonitoringGraph wires the monitoring workflow: monitor the campaign,
// run a quality review when monitoring raised alerts, then report. A clean
// monitoring pass skips the quality review.
func BuildMonitoringGraph(reg *registry.Registry) (*Graph, error) {
	g := New(GraphMonitoring, "monitor")

	for _, stepType := range []string{"monitor", "quality", "report"} {
		step, err := reg.CreateStep(stepType, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build graph %s: %w", GraphMonitoring, err)
		}

		g.AddStep(step)
	}

	g.Connect("monitor",
		OnSignal(models.SignalAlertsRaised, "quality"),
		Default("report"),
	)
	g.Connect("quality", Default("report"))
	g.Connect("report", Default(Terminal))

	err := g.Validate()
	if err != nil {
		return nil, err
	}

	return g, nil
}

// BuildCreationGraph wires the creation workflow: draft and persist the
// campaign, then report on it.
func BuildCreationGraph(reg *registry.Registry) (*Graph, error) {
	g := New(GraphCreation, "create")

	for _, stepType := range []string{"create", "report"} {
		step, err := reg.CreateStep(stepType, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build graph %s: %w", GraphCreation, err)
		}

		g.AddStep(step)
	}

	g.Connect("create", OnSignal(models.SignalCreated, "report"))
	g.Connect("report", Default(Terminal))

	err := g.Validate()
	if err != nil {
		return nil, err
	}

	return g, nil
}
