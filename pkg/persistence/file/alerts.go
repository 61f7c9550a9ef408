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

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
)

// AlertRepository handles alert-related file operations. Alert identifiers
// are already deterministic, so SaveAlert is a plain upsert by file name.
type AlertRepository struct {
	root string
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(root string) *AlertRepository {
	return &AlertRepository{root: root}
}

// SaveAlert creates or updates an alert by its derived identifier.
func (ar *AlertRepository) SaveAlert(_ context.Context, alert *models.Alert) error {
	dir := path.Join(ar.root, "alerts")

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create alerts directory: %w", err)
	}

	data, err := json.MarshalIndent(alert, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal alert %s: %w", alert.ID, err)
	}

	return os.WriteFile(path.Join(dir, alert.ID+".json"), data, 0600)
}

// AlertByID retrieves an alert by its identifier.
func (ar *AlertRepository) AlertByID(_ context.Context, alertID string) (*models.Alert, error) {
	filePath := filepath.Clean(path.Join(ar.root, "alerts", alertID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrAlertNotFound
		}

		return nil, fmt.Errorf("failed to fetch alert %s: %w", alertID, err)
	}

	var alert models.Alert

	err = json.Unmarshal(body, &alert)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert %s: %w", alertID, err)
	}

	return &alert, nil
}

// AlertsByCampaign returns a campaign's alerts, optionally filtered by
// status, newest first.
func (ar *AlertRepository) AlertsByCampaign(ctx context.Context, campaignID string, status *models.AlertStatus) ([]*models.Alert, error) {
	dir := path.Join(ar.root, "alerts")

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list alert files: %w", err)
	}

	alerts := make([]*models.Alert, 0)

	for _, file := range jsonFiles {
		alert, err := ar.AlertByID(ctx, file[:len(file)-5])
		if err != nil {
			return nil, fmt.Errorf("failed to load alert file %s: %w", file, err)
		}

		if alert.CampaignID != campaignID {
			continue
		}

		if status != nil && alert.Status != *status {
			continue
		}

		alerts = append(alerts, alert)
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})

	return alerts, nil
}
