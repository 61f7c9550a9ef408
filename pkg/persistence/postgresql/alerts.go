package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
)

// AlertRepository handles alert-related database operations.
type AlertRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(db *sql.DB, logger *slog.Logger) *AlertRepository {
	return &AlertRepository{db: db, logger: logger}
}

// SaveAlert upserts an alert by its derived identifier.
func (ar *AlertRepository) SaveAlert(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (
			id, campaign_id, category, severity, message, status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			severity = EXCLUDED.severity,
			message = EXCLUDED.message,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err := ar.db.ExecContext(ctx, query,
		alert.ID,
		alert.CampaignID,
		alert.Category,
		alert.Severity,
		alert.Message,
		alert.Status,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert %s: %w", alert.ID, err)
	}

	return nil
}

// AlertByID retrieves an alert by its identifier.
func (ar *AlertRepository) AlertByID(ctx context.Context, alertID string) (*models.Alert, error) {
	row := ar.db.QueryRowContext(ctx, selectAlertQuery+" WHERE id = $1", alertID)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrAlertNotFound
		}

		return nil, fmt.Errorf("failed to scan alert %s: %w", alertID, err)
	}

	return alert, nil
}

// AlertsByCampaign returns a campaign's alerts, optionally filtered by
// status, newest first.
func (ar *AlertRepository) AlertsByCampaign(ctx context.Context, campaignID string, status *models.AlertStatus) ([]*models.Alert, error) {
	query := selectAlertQuery + " WHERE campaign_id = $1"
	args := []any{campaignID}

	if status != nil {
		query += " AND status = $2"
		args = append(args, *status)
	}

	query += " ORDER BY created_at DESC"

	rows, err := ar.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts for campaign %s: %w", campaignID, err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			ar.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	alerts := make([]*models.Alert, 0)

	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

const selectAlertQuery = `
	SELECT id, campaign_id, category, severity, message, status,
		   created_at, updated_at
	FROM alerts
`

func scanAlert(scanner interface {
	Scan(dest ...any) error
},
) (*models.Alert, error) {
	var alert models.Alert

	err := scanner.Scan(
		&alert.ID,
		&alert.CampaignID,
		&alert.Category,
		&alert.Severity,
		&alert.Message,
		&alert.Status,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &alert, nil
}
