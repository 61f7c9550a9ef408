// Package create implements campaign creation from a natural-language brief.
// The Decision Provider turns the brief into a structured draft, which is
// validated against the draft schema and business rules before the campaign
// is persisted.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/protocol"
)

const draftTemplate = "campaign_draft"

// ValidationError carries every violation found in a campaign draft, so a
// caller can fix all of them in one pass instead of discovering them one
// retry at a time.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("campaign draft is invalid: %s", strings.Join(e.Violations, "; "))
}

// IsValidationError checks whether err is a draft validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError

	return errors.As(err, &ve)
}

// draftSchema is the structural contract the Decision Provider's draft must
// satisfy before business-rule validation runs.
var draftSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":          map[string]any{"type": "string"},
		"budget":        map[string]any{"type": "number"},
		"daily_budget":  map[string]any{"type": "number"},
		"duration_days": map[string]any{"type": "integer"},
		"targeting":     map[string]any{"type": "object"},
		"ad_groups":     map[string]any{"type": "array"},
	},
	"required": []string{"name", "budget", "daily_budget", "duration_days", "targeting"},
}

// Creator turns a free-text brief into a persisted draft campaign.
type Creator struct {
	provider  protocol.DecisionProvider
	campaigns persistence.CampaignRepository
	validate  *validator.Validate
}

func NewCreator(provider protocol.DecisionProvider, campaigns persistence.CampaignRepository) *Creator {
	return &Creator{
		provider:  provider,
		campaigns: campaigns,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// CreateFromPrompt asks the Decision Provider for a structured draft,
// validates it and persists the campaign in Draft status. All violations are
// collected into a single ValidationError.
func (c *Creator) CreateFromPrompt(ctx context.Context, prompt string) (*models.Campaign, error) {
	result, err := c.provider.Decide(ctx, protocol.DecisionRequest{
		Template: draftTemplate,
		Context:  map[string]any{"prompt": prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("decision provider failed to draft campaign: %w", err)
	}

	structured, err := structuredDraft(result)
	if err != nil {
		return nil, err
	}

	violations, err := validateSchema(structured)
	if err != nil {
		return nil, err
	}

	draft, convErr := decodeDraft(structured)
	if convErr != nil {
		violations = append(violations, convErr.Error())
	}

	if draft != nil {
		violations = append(violations, c.validateRules(draft)...)
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	campaign := &models.Campaign{
		ID:          uuid.New().String(),
		Name:        draft.Name,
		Status:      models.CampaignStatusDraft,
		Budget:      draft.Budget,
		DailyBudget: draft.DailyBudget,
		Targeting:   draft.Targeting,
		AdGroups:    draft.AdGroups,
		Metrics:     make(map[string]float64),
		CreatedAt:   time.Now().UTC(),
	}

	err = c.campaigns.SaveCampaign(ctx, campaign)
	if err != nil {
		return nil, fmt.Errorf("failed to save campaign: %w", err)
	}

	return campaign, nil
}

// structuredDraft prefers the provider's structured payload, falling back to
// parsing the content body as JSON.
func structuredDraft(result *protocol.DecisionResult) (map[string]any, error) {
	if result.Structured != nil {
		return result.Structured, nil
	}

	var structured map[string]any

	err := json.Unmarshal([]byte(result.Content), &structured)
	if err != nil {
		return nil, fmt.Errorf("decision provider returned no structured draft: %w", err)
	}

	return structured, nil
}

func validateSchema(structured map[string]any) ([]string, error) {
	schemaResult, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(draftSchema),
		gojsonschema.NewGoLoader(structured),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate draft schema: %w", err)
	}

	violations := make([]string, 0)
	for _, desc := range schemaResult.Errors() {
		violations = append(violations, desc.String())
	}

	return violations, nil
}

func decodeDraft(structured map[string]any) (*models.CampaignDraft, error) {
	body, err := json.Marshal(structured)
	if err != nil {
		return nil, fmt.Errorf("draft is not encodable: %v", err)
	}

	var draft models.CampaignDraft

	err = json.Unmarshal(body, &draft)
	if err != nil {
		return nil, fmt.Errorf("draft does not match the expected shape: %v", err)
	}

	return &draft, nil
}

// validateRules applies the business constraints on the draft struct tags,
// translating each field error into a readable violation.
func (c *Creator) validateRules(draft *models.CampaignDraft) []string {
	err := c.validate.Struct(draft)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}

	violations := make([]string, 0, len(fieldErrors))

	for _, fe := range fieldErrors {
		switch fe.Tag() {
		case "required":
			violations = append(violations, fmt.Sprintf("%s is required", fe.Field()))
		case "min":
			violations = append(violations, fmt.Sprintf("%s must have at least %s", fe.Field(), fe.Param()))
		case "gte":
			violations = append(violations, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		default:
			violations = append(violations, fmt.Sprintf("%s failed rule %s", fe.Field(), fe.Tag()))
		}
	}

	return violations
}
