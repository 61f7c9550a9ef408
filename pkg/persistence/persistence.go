// Package persistence provides the data storage abstraction layer for runs,
// campaigns, alerts and report artifacts.
package persistence

import (
	"context"

	"github.com/adopshq/adflow/pkg/models"
)

// Persistence aggregates the repositories the orchestration core depends on.
type Persistence interface {
	Runs() RunRepository
	Campaigns() CampaignRepository
	Alerts() AlertRepository
	Reports() ReportRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// RunRepository stores run checkpoints. Writes to a given run are strictly
// ordered through the expected-version check.
type RunRepository interface {
	// CreateRun persists a new run. It enforces single-flight atomically:
	// if a non-terminal run exists for the same campaign it returns
	// ErrRunAlreadyActive and persists nothing.
	CreateRun(ctx context.Context, run *models.Run) error

	// SaveRun checkpoints a run conditionally. The write succeeds only when
	// the stored version equals expectedVersion; otherwise it returns
	// ErrVersionConflict and the caller must re-read. On success the run's
	// version is bumped to expectedVersion+1.
	SaveRun(ctx context.Context, run *models.Run, expectedVersion int64) error

	RunByID(ctx context.Context, id string) (*models.Run, error)

	// ActiveRunByCampaign returns the single non-terminal run for a campaign,
	// or ErrRunNotFound when none exists.
	ActiveRunByCampaign(ctx context.Context, campaignID string) (*models.Run, error)

	// ActiveRuns lists every non-terminal run across campaigns, oldest first.
	// Recovery after a restart re-enqueues these.
	ActiveRuns(ctx context.Context) ([]*models.Run, error)

	RunsByCampaign(ctx context.Context, campaignID string) ([]*models.Run, error)
}

// CampaignRepository stores campaign metadata between runs.
type CampaignRepository interface {
	SaveCampaign(ctx context.Context, campaign *models.Campaign) error
	CampaignByID(ctx context.Context, id string) (*models.Campaign, error)
	Campaigns(ctx context.Context) ([]*models.Campaign, error)
}

// AlertRepository stores deduplicated alerts keyed by derived identifier.
type AlertRepository interface {
	// SaveAlert upserts by derived ID.
	SaveAlert(ctx context.Context, alert *models.Alert) error
	AlertByID(ctx context.Context, id string) (*models.Alert, error)

	// AlertsByCampaign lists a campaign's alerts, optionally filtered by status.
	AlertsByCampaign(ctx context.Context, campaignID string, status *models.AlertStatus) ([]*models.Alert, error)
}

// ReportRepository stores report artifact metadata; content lives in the
// report archive behind the artifact's content reference.
type ReportRepository interface {
	SaveReport(ctx context.Context, artifact *models.ReportArtifact) error

	// LatestVersion returns the highest stored version for campaign+period,
	// zero when none exists.
	LatestVersion(ctx context.Context, campaignID, period string) (int, error)

	ReportsByCampaign(ctx context.Context, campaignID string) ([]*models.ReportArtifact, error)
}
