// Package file provides file-based persistence for runs, campaigns, alerts
// and report artifacts.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/adopshq/adflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file
// system. Each aggregate lives under its own subdirectory of the root, one
// JSON file per record.
type Persistence struct {
	root         string
	runRepo      *RunRepository
	campaignRepo *CampaignRepository
	alertRepo    *AlertRepository
	reportRepo   *ReportRepository
}

// NewPersistence creates a new instance of Persistence with the specified
// root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		runRepo:      NewRunRepository(cleanRoot),
		campaignRepo: NewCampaignRepository(cleanRoot),
		alertRepo:    NewAlertRepository(cleanRoot),
		reportRepo:   NewReportRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Runs() persistence.RunRepository {
	return fp.runRepo
}

func (fp *Persistence) Campaigns() persistence.CampaignRepository {
	return fp.campaignRepo
}

func (fp *Persistence) Alerts() persistence.AlertRepository {
	return fp.alertRepo
}

func (fp *Persistence) Reports() persistence.ReportRepository {
	return fp.reportRepo
}
