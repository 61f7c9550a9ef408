package create

import (
	"github.com/adopshq/adflow/pkg/protocol"
)

// Factory creates campaign creation step instances.
type Factory struct {
	creator *Creator
}

func NewFactory(creator *Creator) *Factory {
	return &Factory{creator: creator}
}

func (f *Factory) ID() string {
	return "create"
}

func (f *Factory) Create(_ map[string]any) (protocol.Step, error) {
	return NewStep(f.creator), nil
}
