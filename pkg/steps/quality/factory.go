package quality

import (
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/protocol"
)

// Factory creates quality step instances.
type Factory struct {
	campaigns persistence.CampaignRepository
	alerts    protocol.AlertRaiser
}

func NewFactory(campaigns persistence.CampaignRepository, alerts protocol.AlertRaiser) *Factory {
	return &Factory{campaigns: campaigns, alerts: alerts}
}

func (f *Factory) ID() string {
	return "quality"
}

func (f *Factory) Create(_ map[string]any) (protocol.Step, error) {
	return NewStep(f.campaigns, f.alerts), nil
}
