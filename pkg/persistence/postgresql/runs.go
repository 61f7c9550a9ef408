package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
)

const uniqueViolation = "23505"

// RunRepository handles run-related database operations. The single-flight
// guarantee is enforced by a partial unique index on campaign_id over
// non-terminal statuses, so concurrent CreateRun calls race safely.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

// CreateRun inserts a new run. A unique-index violation on the active-run
// index maps to ErrRunAlreadyActive.
func (rr *RunRepository) CreateRun(ctx context.Context, run *models.Run) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}

	run.UpdatedAt = now
	run.Version = 1

	contextJSON, stepsJSON, attemptsJSON, err := marshalRunFields(run)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO runs (
			id, campaign_id, graph_name, entry_node, current_node, status,
			context, steps, attempts, last_error, cancel_requested, version,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = rr.db.ExecContext(ctx, query,
		run.ID,
		run.CampaignID,
		run.GraphName,
		run.EntryNode,
		run.CurrentNode,
		run.Status,
		contextJSON,
		stepsJSON,
		attemptsJSON,
		run.LastError,
		run.CancelRequested,
		run.Version,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewRunError("CreateRun", run.ID, persistence.ErrRunAlreadyActive)
		}

		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// SaveRun updates the run if its stored version equals expectedVersion, then
// bumps the version. A mismatch returns ErrVersionConflict.
func (rr *RunRepository) SaveRun(ctx context.Context, run *models.Run, expectedVersion int64) error {
	run.UpdatedAt = time.Now().UTC()

	contextJSON, stepsJSON, attemptsJSON, err := marshalRunFields(run)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs SET
			current_node = $1,
			status = $2,
			context = $3,
			steps = $4,
			attempts = $5,
			last_error = $6,
			cancel_requested = $7,
			version = $8,
			updated_at = $9
		WHERE id = $10 AND version = $11
	`

	result, err := rr.db.ExecContext(ctx, query,
		run.CurrentNode,
		run.Status,
		contextJSON,
		stepsJSON,
		attemptsJSON,
		run.LastError,
		run.CancelRequested,
		expectedVersion+1,
		run.UpdatedAt,
		run.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check save result for run %s: %w", run.ID, err)
	}

	if affected == 0 {
		_, err := rr.RunByID(ctx, run.ID)
		if err != nil {
			return persistence.NewRunError("SaveRun", run.ID, persistence.ErrRunNotFound)
		}

		return persistence.NewRunError("SaveRun", run.ID, persistence.ErrVersionConflict)
	}

	run.Version = expectedVersion + 1

	return nil
}

// RunByID retrieves a run by its ID.
func (rr *RunRepository) RunByID(ctx context.Context, runID string) (*models.Run, error) {
	row := rr.db.QueryRowContext(ctx, selectRunQuery+" WHERE id = $1", runID)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("RunByID", runID, persistence.ErrRunNotFound)
		}

		return nil, fmt.Errorf("failed to scan run %s: %w", runID, err)
	}

	return run, nil
}

// ActiveRunByCampaign returns the campaign's non-terminal run, or
// ErrRunNotFound when none exists.
func (rr *RunRepository) ActiveRunByCampaign(ctx context.Context, campaignID string) (*models.Run, error) {
	query := selectRunQuery + ` WHERE campaign_id = $1 AND status IN ('pending', 'running', 'suspended')`

	row := rr.db.QueryRowContext(ctx, query, campaignID)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("ActiveRunByCampaign", campaignID, persistence.ErrRunNotFound)
		}

		return nil, fmt.Errorf("failed to scan active run for campaign %s: %w", campaignID, err)
	}

	return run, nil
}

// ActiveRuns returns every non-terminal run, oldest first, for recovery
// after a restart.
func (rr *RunRepository) ActiveRuns(ctx context.Context) ([]*models.Run, error) {
	query := selectRunQuery + ` WHERE status IN ('pending', 'running', 'suspended') ORDER BY created_at`

	rows, err := rr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active runs: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			rr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	runs := make([]*models.Run, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active runs: %w", err)
	}

	return runs, nil
}

// RunsByCampaign returns all runs for a campaign, newest first.
func (rr *RunRepository) RunsByCampaign(ctx context.Context, campaignID string) ([]*models.Run, error) {
	query := selectRunQuery + ` WHERE campaign_id = $1 ORDER BY created_at DESC`

	rows, err := rr.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs for campaign %s: %w", campaignID, err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			rr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	runs := make([]*models.Run, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

const selectRunQuery = `
	SELECT id, campaign_id, graph_name, entry_node, current_node, status,
		   context, steps, attempts, last_error, cancel_requested, version,
		   created_at, updated_at
	FROM runs
`

func marshalRunFields(run *models.Run) (contextJSON, stepsJSON, attemptsJSON []byte, err error) {
	contextJSON, err = json.Marshal(run.Context)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal run context: %w", err)
	}

	stepsJSON, err = json.Marshal(run.Steps)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal run steps: %w", err)
	}

	attemptsJSON, err = json.Marshal(run.Attempts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal run attempts: %w", err)
	}

	return contextJSON, stepsJSON, attemptsJSON, nil
}

func scanRun(scanner interface {
	Scan(dest ...any) error
},
) (*models.Run, error) {
	var (
		run                                  models.Run
		contextJSON, stepsJSON, attemptsJSON []byte
	)

	err := scanner.Scan(
		&run.ID,
		&run.CampaignID,
		&run.GraphName,
		&run.EntryNode,
		&run.CurrentNode,
		&run.Status,
		&contextJSON,
		&stepsJSON,
		&attemptsJSON,
		&run.LastError,
		&run.CancelRequested,
		&run.Version,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Context = make(map[string]any)
	run.Attempts = make(map[string]int)

	if contextJSON != nil {
		err := json.Unmarshal(contextJSON, &run.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal run context: %w", err)
		}
	}

	if stepsJSON != nil {
		err := json.Unmarshal(stepsJSON, &run.Steps)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal run steps: %w", err)
		}
	}

	if attemptsJSON != nil {
		err := json.Unmarshal(attemptsJSON, &run.Attempts)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal run attempts: %w", err)
		}
	}

	return &run, nil
}
