package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adopshq/adflow/pkg/graph"
	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/persistence/file"
	"github.com/adopshq/adflow/pkg/protocol"
)

func startCoordinator(t *testing.T, p persistence.Persistence, g *graph.Graph) *Coordinator {
	t.Helper()

	coord := NewCoordinator(p, map[string]*graph.Graph{g.Name(): g}, Options{
		Config: Config{
			Workers:   2,
			BaseDelay: time.Millisecond,
			MaxDelay:  5 * time.Millisecond,
		},
	})

	coord.Start(t.Context())
	t.Cleanup(func() { coord.Stop(context.Background()) })

	return coord
}

// seedRun checkpoints a run directly in the store, simulating durable state
// left behind by a process that stopped mid-run.
func seedRun(t *testing.T, p persistence.Persistence, run *models.Run, mutate func(*models.Run)) {
	t.Helper()

	if err := p.Runs().CreateRun(t.Context(), run); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}

	if mutate != nil {
		mutate(run)

		if err := p.Runs().SaveRun(t.Context(), run, run.Version); err != nil {
			t.Fatalf("Failed to checkpoint run: %v", err)
		}
	}
}

func TestCoordinator_Start_RecoversInFlightRun(t *testing.T) {
	var aCalls, bCalls atomic.Int32

	a := &fakeStep{name: "a", fn: func(_ context.Context, _ protocol.RunContext) (*models.StepOutcome, error) {
		aCalls.Add(1)

		return &models.StepOutcome{Signal: models.SignalOK}, nil
	}}
	b := &fakeStep{name: "b", fn: func(_ context.Context, _ protocol.RunContext) (*models.StepOutcome, error) {
		bCalls.Add(1)

		return &models.StepOutcome{Signal: models.SignalOK}, nil
	}}

	p := file.NewPersistence(t.TempDir())

	// The previous process checkpointed node a's completion and stopped
	// before executing b.
	run := &models.Run{
		ID:          "run-interrupted",
		CampaignID:  "camp-1",
		GraphName:   "test",
		EntryNode:   "a",
		CurrentNode: "a",
		Status:      models.RunStatusPending,
	}
	seedRun(t, p, run, func(r *models.Run) {
		r.Status = models.RunStatusRunning
		r.RecordAttempt("a")
		r.Steps = append(r.Steps, models.StepRecord{
			Node:    "a",
			Attempt: 1,
			Outcome: &models.StepOutcome{Signal: models.SignalOK},
		})
		r.CurrentNode = "b"
	})

	coord := startCoordinator(t, p, linearGraph(a, b))

	final := waitForStatus(t, p, run.ID, models.RunStatusSucceeded)

	if aCalls.Load() != 0 {
		t.Errorf("Expected the checkpointed node not to re-execute, got %d calls", aCalls.Load())
	}

	if bCalls.Load() != 1 {
		t.Errorf("Expected the interrupted node to execute once, got %d calls", bCalls.Load())
	}

	if len(final.Steps) != 2 {
		t.Errorf("Expected two step records, got %d", len(final.Steps))
	}

	// The campaign admits new runs once the recovered run finishes.
	if _, err := coord.Trigger(t.Context(), "camp-1", "test", nil); err != nil {
		t.Errorf("Expected a new trigger after recovery: %v", err)
	}
}

func TestCoordinator_Start_FailsRunWithOrphanedState(t *testing.T) {
	p := file.NewPersistence(t.TempDir())

	// Checkpointed at b with no step record routing there.
	run := &models.Run{
		ID:          "run-orphaned",
		CampaignID:  "camp-1",
		GraphName:   "test",
		EntryNode:   "a",
		CurrentNode: "a",
		Status:      models.RunStatusPending,
	}
	seedRun(t, p, run, func(r *models.Run) {
		r.Status = models.RunStatusRunning
		r.CurrentNode = "b"
	})

	coord := startCoordinator(t, p, linearGraph(&fakeStep{name: "a"}, &fakeStep{name: "b"}))

	final := waitForStatus(t, p, run.ID, models.RunStatusFailed)

	if !strings.Contains(final.LastError, "replay") {
		t.Errorf("Expected the replay mismatch to be recorded, got %q", final.LastError)
	}

	// The orphaned run no longer blocks the campaign.
	if _, err := coord.Trigger(t.Context(), "camp-1", "test", nil); err != nil {
		t.Errorf("Expected a new trigger after the orphaned run failed: %v", err)
	}
}

func TestCoordinator_Start_LeavesSuspendedRunsWaiting(t *testing.T) {
	p := file.NewPersistence(t.TempDir())

	run := &models.Run{
		ID:          "run-suspended",
		CampaignID:  "camp-1",
		GraphName:   "test",
		EntryNode:   "a",
		CurrentNode: "a",
		Status:      models.RunStatusPending,
	}
	seedRun(t, p, run, func(r *models.Run) {
		r.Status = models.RunStatusSuspended
		r.RecordAttempt("a")
		r.Steps = append(r.Steps, models.StepRecord{
			Node:    "a",
			Attempt: 1,
			Outcome: &models.StepOutcome{Signal: models.SignalSuspend},
		})
	})

	coord := startCoordinator(t, p, linearGraph(&fakeStep{name: "a"}, &fakeStep{name: "b"}))

	time.Sleep(50 * time.Millisecond)

	stored, err := p.Runs().RunByID(t.Context(), run.ID)
	if err != nil {
		t.Fatalf("Failed to read run: %v", err)
	}

	if stored.Status != models.RunStatusSuspended {
		t.Fatalf("Expected the suspended run to keep waiting, got %s", stored.Status)
	}

	// Resume still works after the restart.
	if _, err := coord.Resume(t.Context(), run.ID); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	waitForStatus(t, p, run.ID, models.RunStatusSucceeded)
}

func TestCoordinator_Start_FinalizesCancelRequestedSuspendedRun(t *testing.T) {
	p := file.NewPersistence(t.TempDir())

	run := &models.Run{
		ID:          "run-cancelling",
		CampaignID:  "camp-1",
		GraphName:   "test",
		EntryNode:   "a",
		CurrentNode: "a",
		Status:      models.RunStatusPending,
	}
	seedRun(t, p, run, func(r *models.Run) {
		r.Status = models.RunStatusSuspended
		r.CancelRequested = true
		r.RecordAttempt("a")
		r.Steps = append(r.Steps, models.StepRecord{
			Node:    "a",
			Attempt: 1,
			Outcome: &models.StepOutcome{Signal: models.SignalSuspend},
		})
	})

	startCoordinator(t, p, linearGraph(&fakeStep{name: "a"}))

	waitForStatus(t, p, run.ID, models.RunStatusCancelled)
}

func TestCoordinator_Resume_RejectsOrphanedState(t *testing.T) {
	p := file.NewPersistence(t.TempDir())

	// Suspended, but the recorded outcome routes past the checkpointed node.
	run := &models.Run{
		ID:          "run-bad-suspend",
		CampaignID:  "camp-1",
		GraphName:   "test",
		EntryNode:   "a",
		CurrentNode: "a",
		Status:      models.RunStatusPending,
	}
	seedRun(t, p, run, func(r *models.Run) {
		r.Status = models.RunStatusSuspended
		r.Steps = append(r.Steps, models.StepRecord{
			Node:    "a",
			Attempt: 1,
			Outcome: &models.StepOutcome{Signal: models.SignalOK},
		})
	})

	coord := startCoordinator(t, p, linearGraph(&fakeStep{name: "a"}, &fakeStep{name: "b"}))

	_, err := coord.Resume(t.Context(), run.ID)
	if err == nil || !strings.Contains(err.Error(), "replay") {
		t.Errorf("Expected the replay mismatch to reject the resume, got %v", err)
	}
}

func TestCoordinator_Resume_RestoresAttemptBudget(t *testing.T) {
	var calls atomic.Int32

	g := linearGraph(&fakeStep{name: "a", fn: func(_ context.Context, _ protocol.RunContext) (*models.StepOutcome, error) {
		switch calls.Add(1) {
		case 1:
			return &models.StepOutcome{Signal: models.SignalSuspend}, nil
		case 2, 3:
			return nil, graph.Transient("a", errors.New("provider busy"))
		default:
			return &models.StepOutcome{Signal: models.SignalOK}, nil
		}
	}})

	coord, p := newTestCoordinator(t, g)

	run, err := coord.Trigger(t.Context(), "camp-1", "test", nil)
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	waitForStatus(t, p, run.ID, models.RunStatusSuspended)

	// The suspension consumed an attempt; without the reset on resume the two
	// transient failures below would exhaust the default budget of three.
	if _, err := coord.Resume(t.Context(), run.ID); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	final := waitForStatus(t, p, run.ID, models.RunStatusSucceeded)

	if final.Attempt("a") != 3 {
		t.Errorf("Expected a fresh attempt budget after resume, got %d attempts", final.Attempt("a"))
	}
}
