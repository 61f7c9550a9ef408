// Package models defines the core domain models for campaign workflow orchestration
package models

import "time"

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"     // Created, not yet serving
	CampaignStatusActive    CampaignStatus = "active"    // Currently serving
	CampaignStatusPaused    CampaignStatus = "paused"    // Serving suspended
	CampaignStatusCompleted CampaignStatus = "completed" // Finished its flight
	CampaignStatusArchived  CampaignStatus = "archived"  // Historical, read-only
)

// Ad is a single creative within an ad group.
type Ad struct {
	Headline    string `json:"headline"`
	Description string `json:"description"`
}

// AdGroup groups creatives that share targeting within a campaign.
type AdGroup struct {
	Name string `json:"name"`
	Ads  []Ad   `json:"ads"`
}

// Campaign represents an advertising campaign. The orchestration core owns a
// campaign only for the duration of a run; between runs the campaign
// repository is authoritative.
type Campaign struct {
	ID          string             `json:"id"           validate:"required"`
	Name        string             `json:"name"         validate:"required,min=3"`
	Status      CampaignStatus     `json:"status"       validate:"required"`
	Budget      float64            `json:"budget"       validate:"gte=0"`
	DailyBudget float64            `json:"daily_budget" validate:"gte=0"`
	Targeting   map[string]any     `json:"targeting"`
	AdGroups    []AdGroup          `json:"ad_groups"`
	Metrics     map[string]float64 `json:"metrics"` // daily_spend, impressions, clicks, conversions, ctr, conversion_rate, cpc
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Metric returns a performance metric by name, zero when absent.
func (c *Campaign) Metric(name string) float64 {
	if c.Metrics == nil {
		return 0
	}

	return c.Metrics[name]
}

// BudgetUtilization is today's spend as a fraction of the daily budget.
func (c *Campaign) BudgetUtilization() float64 {
	if c.DailyBudget <= 0 {
		return 0
	}

	return c.Metric("daily_spend") / c.DailyBudget
}

// CampaignDraft is the structured draft the Decision Provider returns when
// parsing a free-text creation prompt. Validation tags carry the business
// constraints the creation step enforces.
type CampaignDraft struct {
	Name         string         `json:"name"          validate:"required,min=3"`
	Budget       float64        `json:"budget"        validate:"gte=0"`
	DailyBudget  float64        `json:"daily_budget"  validate:"gte=0"`
	DurationDays int            `json:"duration_days" validate:"gte=1"`
	Targeting    map[string]any `json:"targeting"     validate:"required,min=1"`
	AdGroups     []AdGroup      `json:"ad_groups"`
}
