package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
)

// CampaignRepository handles campaign-related database operations.
type CampaignRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCampaignRepository creates a new campaign repository.
func NewCampaignRepository(db *sql.DB, logger *slog.Logger) *CampaignRepository {
	return &CampaignRepository{db: db, logger: logger}
}

// SaveCampaign creates or updates a campaign.
func (cr *CampaignRepository) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	now := time.Now().UTC()
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = now
	}

	campaign.UpdatedAt = now

	targetingJSON, err := json.Marshal(campaign.Targeting)
	if err != nil {
		return fmt.Errorf("failed to marshal targeting: %w", err)
	}

	adGroupsJSON, err := json.Marshal(campaign.AdGroups)
	if err != nil {
		return fmt.Errorf("failed to marshal ad groups: %w", err)
	}

	metricsJSON, err := json.Marshal(campaign.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `
		INSERT INTO campaigns (
			id, name, status, budget, daily_budget, targeting, ad_groups,
			metrics, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			budget = EXCLUDED.budget,
			daily_budget = EXCLUDED.daily_budget,
			targeting = EXCLUDED.targeting,
			ad_groups = EXCLUDED.ad_groups,
			metrics = EXCLUDED.metrics,
			updated_at = EXCLUDED.updated_at
	`

	_, err = cr.db.ExecContext(ctx, query,
		campaign.ID,
		campaign.Name,
		campaign.Status,
		campaign.Budget,
		campaign.DailyBudget,
		targetingJSON,
		adGroupsJSON,
		metricsJSON,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save campaign %s: %w", campaign.ID, err)
	}

	return nil
}

// CampaignByID retrieves a campaign by its ID.
func (cr *CampaignRepository) CampaignByID(ctx context.Context, campaignID string) (*models.Campaign, error) {
	row := cr.db.QueryRowContext(ctx, selectCampaignQuery+" WHERE id = $1", campaignID)

	campaign, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrCampaignNotFound
		}

		return nil, fmt.Errorf("failed to scan campaign %s: %w", campaignID, err)
	}

	return campaign, nil
}

// Campaigns returns all campaigns, newest first.
func (cr *CampaignRepository) Campaigns(ctx context.Context) ([]*models.Campaign, error) {
	rows, err := cr.db.QueryContext(ctx, selectCampaignQuery+" ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			cr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	campaigns := make([]*models.Campaign, 0)

	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}

		campaigns = append(campaigns, campaign)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, nil
}

const selectCampaignQuery = `
	SELECT id, name, status, budget, daily_budget, targeting, ad_groups,
		   metrics, created_at, updated_at
	FROM campaigns
`

func scanCampaign(scanner interface {
	Scan(dest ...any) error
},
) (*models.Campaign, error) {
	var (
		campaign                                 models.Campaign
		targetingJSON, adGroupsJSON, metricsJSON []byte
	)

	err := scanner.Scan(
		&campaign.ID,
		&campaign.Name,
		&campaign.Status,
		&campaign.Budget,
		&campaign.DailyBudget,
		&targetingJSON,
		&adGroupsJSON,
		&metricsJSON,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	campaign.Metrics = make(map[string]float64)

	if targetingJSON != nil {
		err := json.Unmarshal(targetingJSON, &campaign.Targeting)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal targeting: %w", err)
		}
	}

	if adGroupsJSON != nil {
		err := json.Unmarshal(adGroupsJSON, &campaign.AdGroups)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal ad groups: %w", err)
		}
	}

	if metricsJSON != nil {
		err := json.Unmarshal(metricsJSON, &campaign.Metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}

	return &campaign, nil
}
