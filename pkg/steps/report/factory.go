package report

import (
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/protocol"
	"github.com/adopshq/adflow/pkg/reports"
)

// Factory creates report step instances.
type Factory struct {
	campaigns persistence.CampaignRepository
	publisher *reports.Service
	provider  protocol.DecisionProvider
}

func NewFactory(campaigns persistence.CampaignRepository, publisher *reports.Service, provider protocol.DecisionProvider) *Factory {
	return &Factory{campaigns: campaigns, publisher: publisher, provider: provider}
}

func (f *Factory) ID() string {
	return "report"
}

func (f *Factory) Create(_ map[string]any) (protocol.Step, error) {
	return NewStep(f.campaigns, f.publisher, f.provider), nil
}
