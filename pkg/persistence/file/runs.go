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
	"sync"
	"time"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
)

// RunRepository handles run-related file operations. A process-wide mutex
// serializes writes so the single-flight check in CreateRun and the version
// check in SaveRun are atomic. File persistence targets single-process
// deployments; multi-process setups use the postgres implementation.
type RunRepository struct {
	root string
	mu   sync.Mutex
}

// NewRunRepository creates a new run repository.
func NewRunRepository(root string) *RunRepository {
	return &RunRepository{root: root}
}

// CreateRun persists a new run. At most one non-terminal run may exist per
// campaign; a second concurrent creation returns ErrRunAlreadyActive.
func (rr *RunRepository) CreateRun(ctx context.Context, run *models.Run) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	existing, err := rr.activeRunLocked(ctx, run.CampaignID)
	if err != nil && !persistence.IsRunNotFound(err) {
		return err
	}

	if existing != nil {
		return persistence.NewRunError("CreateRun", existing.ID, persistence.ErrRunAlreadyActive)
	}

	if _, err := rr.readRun(run.ID); err == nil {
		return persistence.NewRunError("CreateRun", run.ID, persistence.ErrVersionConflict)
	}

	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}

	run.UpdatedAt = now
	run.Version = 1

	return rr.writeRun(run)
}

// SaveRun persists the run if its stored version equals expectedVersion,
// then bumps the version. A mismatch returns ErrVersionConflict and leaves
// the stored run unchanged.
func (rr *RunRepository) SaveRun(_ context.Context, run *models.Run, expectedVersion int64) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	stored, err := rr.readRun(run.ID)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, persistence.ErrRunNotFound)
	}

	if stored.Version != expectedVersion {
		return persistence.NewRunError("SaveRun", run.ID, persistence.ErrVersionConflict)
	}

	run.Version = expectedVersion + 1
	run.UpdatedAt = time.Now().UTC()

	return rr.writeRun(run)
}

// RunByID retrieves a run by its ID.
func (rr *RunRepository) RunByID(_ context.Context, runID string) (*models.Run, error) {
	run, err := rr.readRun(runID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewRunError("RunByID", runID, persistence.ErrRunNotFound)
		}

		return nil, fmt.Errorf("failed to fetch run %s: %w", runID, err)
	}

	return run, nil
}

// ActiveRunByCampaign returns the campaign's non-terminal run, or
// ErrRunNotFound when none exists.
func (rr *RunRepository) ActiveRunByCampaign(ctx context.Context, campaignID string) (*models.Run, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	return rr.activeRunLocked(ctx, campaignID)
}

// ActiveRuns returns every non-terminal run, oldest first. The coordinator
// uses it to recover in-flight runs after a restart.
func (rr *RunRepository) ActiveRuns(ctx context.Context) ([]*models.Run, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	all, err := rr.allRuns(ctx)
	if err != nil {
		return nil, err
	}

	runs := make([]*models.Run, 0)

	for _, run := range all {
		if !run.Status.Terminal() {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	return runs, nil
}

// RunsByCampaign returns all runs for a campaign, newest first.
func (rr *RunRepository) RunsByCampaign(ctx context.Context, campaignID string) ([]*models.Run, error) {
	all, err := rr.allRuns(ctx)
	if err != nil {
		return nil, err
	}

	runs := make([]*models.Run, 0)

	for _, run := range all {
		if run.CampaignID == campaignID {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return runs, nil
}

func (rr *RunRepository) activeRunLocked(ctx context.Context, campaignID string) (*models.Run, error) {
	all, err := rr.allRuns(ctx)
	if err != nil {
		return nil, err
	}

	for _, run := range all {
		if run.CampaignID == campaignID && !run.Status.Terminal() {
			return run, nil
		}
	}

	return nil, persistence.NewRunError("ActiveRunByCampaign", campaignID, persistence.ErrRunNotFound)
}

func (rr *RunRepository) allRuns(_ context.Context) ([]*models.Run, error) {
	dir := path.Join(rr.root, "runs")

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list run files: %w", err)
	}

	runs := make([]*models.Run, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		run, err := rr.readRun(file[:len(file)-5])
		if err != nil {
			return nil, fmt.Errorf("failed to load run file %s: %w", file, err)
		}

		runs = append(runs, run)
	}

	return runs, nil
}

func (rr *RunRepository) readRun(runID string) (*models.Run, error) {
	filePath := filepath.Clean(path.Join(rr.root, "runs", runID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var run models.Run

	err = json.Unmarshal(body, &run)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}

	return &run, nil
}

func (rr *RunRepository) writeRun(run *models.Run) error {
	dir := path.Join(rr.root, "runs")

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", run.ID, err)
	}

	// Write to a temp file and rename so concurrent readers never observe a
	// partially written run.
	tmp, err := os.CreateTemp(dir, run.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for run %s: %w", run.ID, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to write run %s: %w", run.ID, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to write run %s: %w", run.ID, err)
	}

	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to write run %s: %w", run.ID, err)
	}

	if err := os.Rename(tmp.Name(), path.Join(dir, run.ID+".json")); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to write run %s: %w", run.ID, err)
	}

	return nil
}
