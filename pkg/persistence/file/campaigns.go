package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
)

// CampaignRepository handles campaign-related file operations.
type CampaignRepository struct {
	root string
}

// NewCampaignRepository creates a new campaign repository.
func NewCampaignRepository(root string) *CampaignRepository {
	return &CampaignRepository{root: root}
}

// SaveCampaign creates or updates a campaign.
func (cr *CampaignRepository) SaveCampaign(_ context.Context, campaign *models.Campaign) error {
	dir := path.Join(cr.root, "campaigns")

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create campaigns directory: %w", err)
	}

	now := time.Now().UTC()
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = now
	}

	campaign.UpdatedAt = now

	data, err := json.MarshalIndent(campaign, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal campaign %s: %w", campaign.ID, err)
	}

	return os.WriteFile(path.Join(dir, campaign.ID+".json"), data, 0600)
}

// CampaignByID retrieves a campaign by its ID.
func (cr *CampaignRepository) CampaignByID(_ context.Context, campaignID string) (*models.Campaign, error) {
	filePath := filepath.Clean(path.Join(cr.root, "campaigns", campaignID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrCampaignNotFound
		}

		return nil, fmt.Errorf("failed to fetch campaign %s: %w", campaignID, err)
	}

	var campaign models.Campaign

	err = json.Unmarshal(body, &campaign)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal campaign %s: %w", campaignID, err)
	}

	return &campaign, nil
}

// Campaigns returns all campaigns sorted by creation time, newest first.
func (cr *CampaignRepository) Campaigns(ctx context.Context) ([]*models.Campaign, error) {
	dir := path.Join(cr.root, "campaigns")

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign files: %w", err)
	}

	campaigns := make([]*models.Campaign, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		campaign, err := cr.CampaignByID(ctx, file[:len(file)-5])
		if err != nil {
			return nil, fmt.Errorf("failed to load campaign file %s: %w", file, err)
		}

		campaigns = append(campaigns, campaign)
	}

	sort.Slice(campaigns, func(i, j int) bool {
		return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
	})

	return campaigns, nil
}
