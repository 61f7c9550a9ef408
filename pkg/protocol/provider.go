package protocol

import (
	"context"

	"github.com/adopshq/adflow/pkg/models"
)

// DecisionRequest asks the Decision Provider for a structured decision or
// analysis. Template names a fixed prompt schema on the provider side.
type DecisionRequest struct {
	Template string         `json:"template"`
	Context  map[string]any `json:"context,omitempty"`
}

// DecisionResult is the provider's response. Structured carries the parsed
// payload when the template demands one; Content is free text otherwise.
type DecisionResult struct {
	Content    string         `json:"content,omitempty"`
	Structured map[string]any `json:"structured,omitempty"`
}

// DecisionProvider is the opaque external capability steps delegate analysis
// to. The core owns no retry logic for it beyond the step-level timeout and
// retry policy; tests substitute a deterministic stub.
type DecisionProvider interface {
	Decide(ctx context.Context, req DecisionRequest) (*DecisionResult, error)
}

// AlertRaiser raises deduplicated alerts. Steps request alerts as side
// effects; the identity rules downstream absorb duplicate requests.
type AlertRaiser interface {
	Raise(ctx context.Context, campaignID string, category models.AlertCategory, severity models.AlertSeverity, message string) (string, error)
}

// ReportPublisher archives a versioned report artifact for a campaign+period.
type ReportPublisher interface {
	Publish(ctx context.Context, campaignID, period, format string, content []byte) (*models.ReportArtifact, error)
}
