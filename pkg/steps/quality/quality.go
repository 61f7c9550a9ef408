// Package quality implements the QA review step. It scores a campaign
// against compliance and configuration rules and raises alerts for
// violations.
package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/protocol"
	"github.com/adopshq/adflow/pkg/steps"
)

// prohibitedTerms are claims ad copy may never carry.
var prohibitedTerms = []string{"guaranteed", "miracle", "instant"}

const (
	minimumTargetAge = 18
	perfectScore     = 100

	prohibitedTermPenalty = 20
	underageTargetPenalty = 30
	budgetMismatchPenalty = 10
)

// Step reviews a campaign's creatives, targeting and budget configuration.
// Each rule violation deducts from a score starting at 100; compliance
// violations additionally raise alerts.
type Step struct {
	campaigns persistence.CampaignRepository
	alerts    protocol.AlertRaiser
}

func NewStep(campaigns persistence.CampaignRepository, alerts protocol.AlertRaiser) *Step {
	return &Step{campaigns: campaigns, alerts: alerts}
}

func (s *Step) Name() string {
	return "quality"
}

func (s *Step) Execute(ctx context.Context, rc protocol.RunContext) (*models.StepOutcome, error) {
	campaign, err := s.campaigns.CampaignByID(ctx, rc.CampaignID)
	if err != nil {
		if persistence.IsCampaignNotFound(err) {
			return nil, steps.Permanentf("campaign %s not found", rc.CampaignID)
		}

		return nil, steps.Transientf("failed to load campaign %s: %v", rc.CampaignID, err)
	}

	score := perfectScore
	issues := make([]map[string]any, 0)

	record := func(rule, detail string, penalty int) {
		score -= penalty
		issues = append(issues, map[string]any{
			"rule":    rule,
			"detail":  detail,
			"penalty": penalty,
		})
	}

	if terms := findProhibitedTerms(campaign); len(terms) > 0 {
		detail := fmt.Sprintf("ad copy contains prohibited terms: %s", strings.Join(terms, ", "))
		record("prohibited_terms", detail, prohibitedTermPenalty)

		_, aerr := s.alerts.Raise(ctx, campaign.ID, models.AlertCategoryCompliance, models.SeverityCritical, detail)
		if aerr != nil {
			return nil, steps.Transientf("failed to raise compliance alert: %v", aerr)
		}
	}

	if age, ok := minTargetAge(campaign.Targeting); ok && age < minimumTargetAge {
		detail := fmt.Sprintf("targeting includes users under %d (age_min=%d)", minimumTargetAge, age)
		record("underage_targeting", detail, underageTargetPenalty)

		_, aerr := s.alerts.Raise(ctx, campaign.ID, models.AlertCategoryCompliance, models.SeverityCritical, detail)
		if aerr != nil {
			return nil, steps.Transientf("failed to raise compliance alert: %v", aerr)
		}
	}

	// A total budget below one week of daily spend cannot sustain delivery.
	if campaign.DailyBudget > 0 && campaign.Budget < campaign.DailyBudget*7 {
		detail := fmt.Sprintf("total budget %.2f is below seven days of daily budget %.2f", campaign.Budget, campaign.DailyBudget)
		record("budget_mismatch", detail, budgetMismatchPenalty)

		_, aerr := s.alerts.Raise(ctx, campaign.ID, models.AlertCategoryBudget, models.SeverityWarning, detail)
		if aerr != nil {
			return nil, steps.Transientf("failed to raise budget alert: %v", aerr)
		}
	}

	signal := models.SignalClean
	if len(issues) > 0 {
		signal = models.SignalIssuesFound
	}

	return &models.StepOutcome{
		Signal: signal,
		Data: map[string]any{
			"score":  score,
			"issues": issues,
		},
	}, nil
}

func findProhibitedTerms(campaign *models.Campaign) []string {
	found := make([]string, 0)
	seen := make(map[string]bool)

	scan := func(text string) {
		lowered := strings.ToLower(text)
		for _, term := range prohibitedTerms {
			if strings.Contains(lowered, term) && !seen[term] {
				seen[term] = true

				found = append(found, term)
			}
		}
	}

	for _, group := range campaign.AdGroups {
		for _, ad := range group.Ads {
			scan(ad.Headline)
			scan(ad.Description)
		}
	}

	return found
}

// minTargetAge reads the minimum targeted age from the targeting map,
// tolerating the numeric types JSON decoding produces.
func minTargetAge(targeting map[string]any) (int, bool) {
	raw, ok := targeting["age_min"]
	if !ok {
		return 0, false
	}

	switch v := raw.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
