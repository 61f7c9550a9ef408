package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/adopshq/adflow/pkg/models"
)

// ReportRepository handles report-artifact database operations.
type ReportRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewReportRepository creates a new report repository.
func NewReportRepository(db *sql.DB, logger *slog.Logger) *ReportRepository {
	return &ReportRepository{db: db, logger: logger}
}

// SaveReport records a report artifact. Artifacts are immutable; a duplicate
// campaign+period+version fails on the primary key.
func (rr *ReportRepository) SaveReport(ctx context.Context, artifact *models.ReportArtifact) error {
	query := `
		INSERT INTO reports (campaign_id, period, format, content_ref, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := rr.db.ExecContext(ctx, query,
		artifact.CampaignID,
		artifact.Period,
		artifact.Format,
		artifact.ContentRef,
		artifact.Version,
		artifact.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save report artifact: %w", err)
	}

	return nil
}

// LatestVersion returns the highest recorded version for a campaign and
// period, or 0 when no artifact exists.
func (rr *ReportRepository) LatestVersion(ctx context.Context, campaignID, period string) (int, error) {
	var version int

	query := `SELECT COALESCE(MAX(version), 0) FROM reports WHERE campaign_id = $1 AND period = $2`

	err := rr.db.QueryRowContext(ctx, query, campaignID, period).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query latest report version: %w", err)
	}

	return version, nil
}

// ReportsByCampaign returns a campaign's report artifacts, newest first.
func (rr *ReportRepository) ReportsByCampaign(ctx context.Context, campaignID string) ([]*models.ReportArtifact, error) {
	query := `
		SELECT campaign_id, period, format, content_ref, version, created_at
		FROM reports
		WHERE campaign_id = $1
		ORDER BY created_at DESC
	`

	rows, err := rr.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports for campaign %s: %w", campaignID, err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			rr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	artifacts := make([]*models.ReportArtifact, 0)

	for rows.Next() {
		var artifact models.ReportArtifact

		err := rows.Scan(
			&artifact.CampaignID,
			&artifact.Period,
			&artifact.Format,
			&artifact.ContentRef,
			&artifact.Version,
			&artifact.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report artifact: %w", err)
		}

		artifacts = append(artifacts, &artifact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return artifacts, nil
}
