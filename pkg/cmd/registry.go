// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/adopshq/adflow/pkg/alerts"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/protocol"
	"github.com/adopshq/adflow/pkg/registry"
	"github.com/adopshq/adflow/pkg/reports"
	"github.com/adopshq/adflow/pkg/steps/create"
	"github.com/adopshq/adflow/pkg/steps/monitor"
	"github.com/adopshq/adflow/pkg/steps/quality"
	"github.com/adopshq/adflow/pkg/steps/report"
)

// NewRegistry registers the native agent steps against their shared
// collaborators.
func NewRegistry(log *slog.Logger, p persistence.Persistence, alertService *alerts.Service, reportService *reports.Service, provider protocol.DecisionProvider) *registry.Registry {
	reg := registry.NewRegistry(log)

	creator := create.NewCreator(provider, p.Campaigns())

	reg.RegisterStep(monitor.NewFactory(p.Campaigns(), alertService))
	reg.RegisterStep(quality.NewFactory(p.Campaigns(), alertService))
	reg.RegisterStep(report.NewFactory(p.Campaigns(), reportService, provider))
	reg.RegisterStep(create.NewFactory(creator))

	return reg
}
