// Package monitor implements the performance monitoring step. It evaluates a
// campaign's delivery metrics against pacing and budget thresholds and raises
// deduplicated alerts for breaches.
package monitor

import (
	"context"
	"fmt"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/protocol"
	"github.com/adopshq/adflow/pkg/steps"
)

const (
	// Daily-spend utilization thresholds, as a fraction of daily budget.
	overspendWarning  = 1.5
	overspendCritical = 2.0
	underspendFloor   = 0.5

	lowCTRFloor  = 0.01
	highCPCLimit = 2.0
)

// Step checks a campaign's pacing, spend and engagement and raises alerts
// for threshold breaches. CPC above the limit yields a recommendation only.
type Step struct {
	campaigns persistence.CampaignRepository
	alerts    protocol.AlertRaiser
}

func NewStep(campaigns persistence.CampaignRepository, alerts protocol.AlertRaiser) *Step {
	return &Step{campaigns: campaigns, alerts: alerts}
}

func (s *Step) Name() string {
	return "monitor"
}

func (s *Step) Execute(ctx context.Context, rc protocol.RunContext) (*models.StepOutcome, error) {
	campaign, err := s.campaigns.CampaignByID(ctx, rc.CampaignID)
	if err != nil {
		if persistence.IsCampaignNotFound(err) {
			return nil, steps.Permanentf("campaign %s not found", rc.CampaignID)
		}

		return nil, steps.Transientf("failed to load campaign %s: %v", rc.CampaignID, err)
	}

	utilization := campaign.BudgetUtilization()
	raised := make([]map[string]any, 0)
	recommendations := make([]string, 0)

	raise := func(category models.AlertCategory, severity models.AlertSeverity, message string) error {
		id, err := s.alerts.Raise(ctx, campaign.ID, category, severity, message)
		if err != nil {
			return steps.Transientf("failed to raise alert: %v", err)
		}

		raised = append(raised, map[string]any{
			"alert_id": id,
			"category": string(category),
			"severity": string(severity),
			"message":  message,
		})

		return nil
	}

	switch {
	case utilization >= overspendCritical:
		err = raise(models.AlertCategoryPacing, models.SeverityCritical,
			fmt.Sprintf("daily spend is %.0f%% of daily budget", utilization*100))
	case utilization >= overspendWarning:
		err = raise(models.AlertCategoryPacing, models.SeverityWarning,
			fmt.Sprintf("daily spend is %.0f%% of daily budget", utilization*100))
	case campaign.DailyBudget > 0 && utilization < underspendFloor:
		err = raise(models.AlertCategoryBudget, models.SeverityWarning,
			fmt.Sprintf("daily spend is only %.0f%% of daily budget, campaign is underspending", utilization*100))
	}

	if err != nil {
		return nil, err
	}

	if campaign.Metric("impressions") > 0 && campaign.Metric("ctr") < lowCTRFloor {
		err = raise(models.AlertCategoryPacing, models.SeverityWarning,
			fmt.Sprintf("CTR %.2f%% is below the %.0f%% floor", campaign.Metric("ctr")*100, lowCTRFloor*100))
		if err != nil {
			return nil, err
		}
	}

	if cpc := campaign.Metric("cpc"); cpc > highCPCLimit {
		recommendations = append(recommendations,
			fmt.Sprintf("CPC %.2f exceeds %.2f, consider tightening targeting or lowering bids", cpc, highCPCLimit))
	}

	signal := models.SignalOK
	if len(raised) > 0 {
		signal = models.SignalAlertsRaised
	}

	return &models.StepOutcome{
		Signal: signal,
		Data: map[string]any{
			"utilization":     utilization,
			"alerts":          raised,
			"recommendations": recommendations,
		},
	}, nil
}
