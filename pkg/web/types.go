package web

// CreateCampaignRequest asks for a campaign to be drafted from a free-text
// brief.
type CreateCampaignRequest struct {
	Prompt string `json:"prompt" validate:"required,min=10"`
}

// TriggerRunRequest starts a workflow run for a campaign. Graph defaults to
// the monitoring graph.
type TriggerRunRequest struct {
	Graph   string         `json:"graph,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}
