package file

import (
	"sync"
	"testing"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
)

func newRun(id, campaignID string) *models.Run {
	return &models.Run{
		ID:          id,
		CampaignID:  campaignID,
		GraphName:   "campaign_monitoring",
		EntryNode:   "monitor",
		CurrentNode: "monitor",
		Status:      models.RunStatusPending,
	}
}

func TestRunRepository_CreateAndFetch(t *testing.T) {
	repo := NewRunRepository(t.TempDir())

	run := newRun("run-1", "camp-1")
	if err := repo.CreateRun(t.Context(), run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if run.Version != 1 {
		t.Errorf("Expected version 1 after create, got %d", run.Version)
	}

	stored, err := repo.RunByID(t.Context(), "run-1")
	if err != nil {
		t.Fatalf("RunByID failed: %v", err)
	}

	if stored.CampaignID != "camp-1" || stored.Status != models.RunStatusPending {
		t.Errorf("Stored run does not match: %+v", stored)
	}
}

func TestRunRepository_SingleFlight(t *testing.T) {
	repo := NewRunRepository(t.TempDir())

	if err := repo.CreateRun(t.Context(), newRun("run-1", "camp-1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	err := repo.CreateRun(t.Context(), newRun("run-2", "camp-1"))
	if !persistence.IsRunAlreadyActive(err) {
		t.Fatalf("Expected ErrRunAlreadyActive, got %v", err)
	}

	// The rejected create persisted nothing.
	if _, err := repo.RunByID(t.Context(), "run-2"); !persistence.IsRunNotFound(err) {
		t.Errorf("Expected the rejected run not to exist, got %v", err)
	}

	// A different campaign is unaffected.
	if err := repo.CreateRun(t.Context(), newRun("run-3", "camp-2")); err != nil {
		t.Errorf("Expected creates for other campaigns to pass: %v", err)
	}
}

func TestRunRepository_SingleFlight_Concurrent(t *testing.T) {
	repo := NewRunRepository(t.TempDir())

	const attempts = 16

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)

	for i := range attempts {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			run := newRun(string(rune('a'+n))+"-run", "camp-1")
			if err := repo.CreateRun(t.Context(), run); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()

	if accepted != 1 {
		t.Errorf("Expected exactly one create to win, got %d", accepted)
	}
}

func TestRunRepository_CreateAfterTerminal(t *testing.T) {
	repo := NewRunRepository(t.TempDir())

	run := newRun("run-1", "camp-1")
	if err := repo.CreateRun(t.Context(), run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	run.Status = models.RunStatusSucceeded
	if err := repo.SaveRun(t.Context(), run, run.Version); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	// A terminal run no longer blocks admission.
	if err := repo.CreateRun(t.Context(), newRun("run-2", "camp-1")); err != nil {
		t.Errorf("Expected a new run after the previous one finished: %v", err)
	}
}

func TestRunRepository_SaveRun_VersionConflict(t *testing.T) {
	repo := NewRunRepository(t.TempDir())

	run := newRun("run-1", "camp-1")
	if err := repo.CreateRun(t.Context(), run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	run.Status = models.RunStatusRunning
	if err := repo.SaveRun(t.Context(), run, 1); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	if run.Version != 2 {
		t.Errorf("Expected version bump to 2, got %d", run.Version)
	}

	// A writer holding the stale version loses.
	stale := newRun("run-1", "camp-1")
	stale.Status = models.RunStatusFailed

	err := repo.SaveRun(t.Context(), stale, 1)
	if !persistence.IsVersionConflict(err) {
		t.Fatalf("Expected ErrVersionConflict, got %v", err)
	}

	stored, err := repo.RunByID(t.Context(), "run-1")
	if err != nil {
		t.Fatalf("RunByID failed: %v", err)
	}

	if stored.Status != models.RunStatusRunning {
		t.Errorf("Expected the losing write to change nothing, got %s", stored.Status)
	}
}

func TestRunRepository_SaveRun_Missing(t *testing.T) {
	repo := NewRunRepository(t.TempDir())

	err := repo.SaveRun(t.Context(), newRun("ghost", "camp-1"), 1)
	if !persistence.IsRunNotFound(err) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestRunRepository_ActiveRunByCampaign(t *testing.T) {
	repo := NewRunRepository(t.TempDir())

	if _, err := repo.ActiveRunByCampaign(t.Context(), "camp-1"); !persistence.IsRunNotFound(err) {
		t.Errorf("Expected ErrRunNotFound with no runs, got %v", err)
	}

	run := newRun("run-1", "camp-1")
	if err := repo.CreateRun(t.Context(), run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	active, err := repo.ActiveRunByCampaign(t.Context(), "camp-1")
	if err != nil {
		t.Fatalf("ActiveRunByCampaign failed: %v", err)
	}

	if active.ID != "run-1" {
		t.Errorf("Expected run-1, got %s", active.ID)
	}
}

func TestRunRepository_RunsByCampaign_NewestFirst(t *testing.T) {
	repo := NewRunRepository(t.TempDir())

	first := newRun("run-1", "camp-1")
	if err := repo.CreateRun(t.Context(), first); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	first.Status = models.RunStatusSucceeded
	if err := repo.SaveRun(t.Context(), first, first.Version); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	second := newRun("run-2", "camp-1")
	second.CreatedAt = first.CreatedAt.Add(1)

	if err := repo.CreateRun(t.Context(), second); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if err := repo.CreateRun(t.Context(), newRun("run-other", "camp-2")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	runs, err := repo.RunsByCampaign(t.Context(), "camp-1")
	if err != nil {
		t.Fatalf("RunsByCampaign failed: %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("Expected two runs, got %d", len(runs))
	}

	if runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Errorf("Expected newest first, got %s then %s", runs[0].ID, runs[1].ID)
	}
}

func TestRunRepository_ActiveRuns(t *testing.T) {
	repo := NewRunRepository(t.TempDir())

	pending := newRun("run-pending", "camp-1")
	if err := repo.CreateRun(t.Context(), pending); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	finished := newRun("run-finished", "camp-2")
	if err := repo.CreateRun(t.Context(), finished); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	finished.Status = models.RunStatusSucceeded
	if err := repo.SaveRun(t.Context(), finished, finished.Version); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	suspended := newRun("run-suspended", "camp-3")
	suspended.CreatedAt = pending.CreatedAt.Add(1)

	if err := repo.CreateRun(t.Context(), suspended); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	suspended.Status = models.RunStatusSuspended
	if err := repo.SaveRun(t.Context(), suspended, suspended.Version); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	active, err := repo.ActiveRuns(t.Context())
	if err != nil {
		t.Fatalf("ActiveRuns failed: %v", err)
	}

	if len(active) != 2 {
		t.Fatalf("Expected two non-terminal runs, got %d", len(active))
	}

	if active[0].ID != "run-pending" || active[1].ID != "run-suspended" {
		t.Errorf("Expected oldest first, got %s then %s", active[0].ID, active[1].ID)
	}
}

func TestRunRepository_ActiveRunByCampaign_ConcurrentWithWrites(t *testing.T) {
	repo := NewRunRepository(t.TempDir())

	run := newRun("run-1", "camp-1")
	if err := repo.CreateRun(t.Context(), run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, _ = repo.ActiveRunByCampaign(t.Context(), "camp-1")
			_, _ = repo.ActiveRuns(t.Context())
		}()
	}

	run.Status = models.RunStatusRunning
	if err := repo.SaveRun(t.Context(), run, run.Version); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	wg.Wait()
}
