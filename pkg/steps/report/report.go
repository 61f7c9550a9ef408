// Package report implements the reporting step. It aggregates campaign
// metrics with the findings of earlier steps and publishes a versioned
// report artifact.
package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/protocol"
	"github.com/adopshq/adflow/pkg/reports"
	"github.com/adopshq/adflow/pkg/steps"
)

const (
	defaultPeriod   = "last_7_days"
	summaryTemplate = "executive_summary"
)

// Step builds a report for the run's campaign and archives it through the
// report service. The Decision Provider contributes an executive summary;
// when it is unavailable the report ships without one.
type Step struct {
	campaigns persistence.CampaignRepository
	publisher *reports.Service
	provider  protocol.DecisionProvider
}

func NewStep(campaigns persistence.CampaignRepository, publisher *reports.Service, provider protocol.DecisionProvider) *Step {
	return &Step{campaigns: campaigns, publisher: publisher, provider: provider}
}

func (s *Step) Name() string {
	return "report"
}

func (s *Step) Execute(ctx context.Context, rc protocol.RunContext) (*models.StepOutcome, error) {
	campaignID := rc.CampaignID

	// A creation run reports on the campaign it just created.
	if created := stepResult(rc, "create"); created != nil {
		if id, ok := created["campaign_id"].(string); ok && id != "" {
			campaignID = id
		}
	}

	campaign, err := s.campaigns.CampaignByID(ctx, campaignID)
	if err != nil {
		if persistence.IsCampaignNotFound(err) {
			return nil, steps.Permanentf("campaign %s not found", campaignID)
		}

		return nil, steps.Transientf("failed to load campaign %s: %v", campaignID, err)
	}

	period := defaultPeriod
	if p := rc.String("period"); p != "" {
		period = p
	}

	content := map[string]any{
		"campaign_id":   campaign.ID,
		"campaign_name": campaign.Name,
		"period":        period,
		"generated_at":  time.Now().UTC().Format(time.RFC3339),
		"metrics": map[string]any{
			"daily_spend":     campaign.Metric("daily_spend"),
			"impressions":     campaign.Metric("impressions"),
			"clicks":          campaign.Metric("clicks"),
			"conversions":     campaign.Metric("conversions"),
			"ctr":             campaign.Metric("ctr"),
			"conversion_rate": campaign.Metric("conversion_rate"),
			"cpc":             campaign.Metric("cpc"),
			"utilization":     campaign.BudgetUtilization(),
		},
	}

	if monitor := stepResult(rc, "monitor"); monitor != nil {
		content["monitoring"] = monitor
	}

	if quality := stepResult(rc, "quality"); quality != nil {
		content["quality_review"] = quality
	}

	content["executive_summary"] = s.executiveSummary(ctx, rc, content)

	body, err := json.Marshal(content)
	if err != nil {
		return nil, steps.Permanentf("failed to encode report content: %v", err)
	}

	artifact, err := s.publisher.Publish(ctx, campaign.ID, period, "json", body)
	if err != nil {
		return nil, steps.Transientf("failed to publish report: %v", err)
	}

	return &models.StepOutcome{
		Signal: models.SignalOK,
		Data: map[string]any{
			"period":      artifact.Period,
			"version":     artifact.Version,
			"content_ref": artifact.ContentRef,
		},
	}, nil
}

// executiveSummary asks the Decision Provider for a narrative summary. The
// summary is additive; provider failures never fail the report.
func (s *Step) executiveSummary(ctx context.Context, rc protocol.RunContext, content map[string]any) string {
	if s.provider == nil {
		return ""
	}

	result, err := s.provider.Decide(ctx, protocol.DecisionRequest{
		Template: summaryTemplate,
		Context:  content,
	})
	if err != nil {
		if rc.Logger != nil {
			rc.Logger.WarnContext(ctx, "Executive summary unavailable", "error", err)
		}

		return ""
	}

	return result.Content
}

func stepResult(rc protocol.RunContext, node string) map[string]any {
	results, ok := rc.Value("steps").(map[string]any)
	if !ok {
		return nil
	}

	data, _ := results[node].(map[string]any)

	return data
}
