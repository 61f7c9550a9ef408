package create

import (
	"context"

	"github.com/adopshq/adflow/pkg/graph"
	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/protocol"
	"github.com/adopshq/adflow/pkg/steps"
)

// Step runs campaign creation inside a workflow run. The creation brief comes
// from the run context under "prompt".
type Step struct {
	creator *Creator
}

func NewStep(creator *Creator) *Step {
	return &Step{creator: creator}
}

func (s *Step) Name() string {
	return "create"
}

func (s *Step) Execute(ctx context.Context, rc protocol.RunContext) (*models.StepOutcome, error) {
	prompt := rc.String("prompt")
	if prompt == "" {
		return nil, steps.Permanentf("run context is missing the creation prompt")
	}

	campaign, err := s.creator.CreateFromPrompt(ctx, prompt)
	if err != nil {
		if IsValidationError(err) {
			// Retrying the same prompt yields the same violations.
			return nil, &graph.PermanentError{Node: s.Name(), Err: err}
		}

		return nil, steps.Transientf("campaign creation failed: %v", err)
	}

	return &models.StepOutcome{
		Signal: models.SignalCreated,
		Data: map[string]any{
			"campaign_id":   campaign.ID,
			"campaign_name": campaign.Name,
			"status":        string(campaign.Status),
		},
	}, nil
}
