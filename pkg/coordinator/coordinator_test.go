package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adopshq/adflow/pkg/graph"
	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/persistence/file"
	"github.com/adopshq/adflow/pkg/protocol"
)

type fakeStep struct {
	name string
	fn   func(ctx context.Context, rc protocol.RunContext) (*models.StepOutcome, error)
}

func (s *fakeStep) Name() string {
	return s.name
}

func (s *fakeStep) Execute(ctx context.Context, rc protocol.RunContext) (*models.StepOutcome, error) {
	if s.fn == nil {
		return &models.StepOutcome{Signal: models.SignalOK}, nil
	}

	return s.fn(ctx, rc)
}

func linearGraph(steps ...*fakeStep) *graph.Graph {
	g := graph.New("test", steps[0].Name())

	for _, s := range steps {
		g.AddStep(s)
	}

	for i, s := range steps {
		if i+1 < len(steps) {
			g.Connect(s.Name(), graph.Default(steps[i+1].Name()))
		} else {
			g.Connect(s.Name(), graph.Default(graph.Terminal))
		}
	}

	return g
}

func newTestCoordinator(t *testing.T, g *graph.Graph) (*Coordinator, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	coord := NewCoordinator(p, map[string]*graph.Graph{g.Name(): g}, Options{
		Config: Config{
			Workers:   2,
			BaseDelay: time.Millisecond,
			MaxDelay:  5 * time.Millisecond,
		},
	})

	coord.Start(t.Context())
	t.Cleanup(func() { coord.Stop(context.Background()) })

	return coord, p
}

func waitForStatus(t *testing.T, p persistence.Persistence, runID string, want models.RunStatus) *models.Run {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		run, err := p.Runs().RunByID(t.Context(), runID)
		if err != nil {
			t.Fatalf("Failed to read run: %v", err)
		}

		if run.Status == want {
			return run
		}

		time.Sleep(5 * time.Millisecond)
	}

	run, _ := p.Runs().RunByID(t.Context(), runID)
	t.Fatalf("Run %s never reached %s, last status %s", runID, want, run.Status)

	return nil
}

func TestCoordinator_Trigger_RunsToCompletion(t *testing.T) {
	g := linearGraph(&fakeStep{name: "a"}, &fakeStep{name: "b"})
	coord, p := newTestCoordinator(t, g)

	run, err := coord.Trigger(t.Context(), "camp-1", "test", map[string]any{"triggered_by": "test"})
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	final := waitForStatus(t, p, run.ID, models.RunStatusSucceeded)

	if len(final.Steps) != 2 {
		t.Errorf("Expected two step records, got %d", len(final.Steps))
	}

	if final.Attempt("a") != 1 || final.Attempt("b") != 1 {
		t.Errorf("Expected one attempt per node, got %v", final.Attempts)
	}
}

func TestCoordinator_Trigger_UnknownGraph(t *testing.T) {
	g := linearGraph(&fakeStep{name: "a"})
	coord, _ := newTestCoordinator(t, g)

	_, err := coord.Trigger(t.Context(), "camp-1", "nope", nil)
	if !errors.Is(err, ErrUnknownGraph) {
		t.Errorf("Expected ErrUnknownGraph, got %v", err)
	}
}

func TestCoordinator_Trigger_SingleFlight(t *testing.T) {
	gate := make(chan struct{})
	g := linearGraph(&fakeStep{name: "a", fn: func(ctx context.Context, _ protocol.RunContext) (*models.StepOutcome, error) {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		return &models.StepOutcome{Signal: models.SignalOK}, nil
	}})

	coord, p := newTestCoordinator(t, g)

	first, err := coord.Trigger(t.Context(), "camp-1", "test", nil)
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	// While the first run is active, a duplicate is rejected without state.
	_, err = coord.Trigger(t.Context(), "camp-1", "test", nil)
	if !persistence.IsRunAlreadyActive(err) {
		t.Fatalf("Expected ErrRunAlreadyActive, got %v", err)
	}

	// Other campaigns are unaffected.
	if _, err = coord.Trigger(t.Context(), "camp-2", "test", nil); err != nil {
		t.Errorf("Expected an independent campaign to trigger: %v", err)
	}

	close(gate)
	waitForStatus(t, p, first.ID, models.RunStatusSucceeded)

	// Once the run is terminal the campaign admits a new one.
	if _, err = coord.Trigger(t.Context(), "camp-1", "test", nil); err != nil {
		t.Errorf("Expected a new run after completion: %v", err)
	}
}

func TestCoordinator_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	g := linearGraph(&fakeStep{name: "a", fn: func(_ context.Context, _ protocol.RunContext) (*models.StepOutcome, error) {
		if calls.Add(1) < 3 {
			return nil, graph.Transient("a", errors.New("connection reset"))
		}

		return &models.StepOutcome{Signal: models.SignalOK}, nil
	}})

	coord, p := newTestCoordinator(t, g)

	run, err := coord.Trigger(t.Context(), "camp-1", "test", nil)
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	final := waitForStatus(t, p, run.ID, models.RunStatusSucceeded)

	if final.Attempt("a") != 3 {
		t.Errorf("Expected three attempts, got %d", final.Attempt("a"))
	}

	// Two failed attempts and one success, all recorded.
	if len(final.Steps) != 3 {
		t.Errorf("Expected three step records, got %d", len(final.Steps))
	}
}

func TestCoordinator_RetryBudgetExhausted(t *testing.T) {
	g := linearGraph(&fakeStep{name: "a", fn: func(_ context.Context, _ protocol.RunContext) (*models.StepOutcome, error) {
		return nil, graph.Transient("a", errors.New("still down"))
	}})

	coord, p := newTestCoordinator(t, g)

	run, err := coord.Trigger(t.Context(), "camp-1", "test", nil)
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	final := waitForStatus(t, p, run.ID, models.RunStatusFailed)

	if final.Attempt("a") != DefaultMaxAttempts {
		t.Errorf("Expected %d attempts, got %d", DefaultMaxAttempts, final.Attempt("a"))
	}

	if final.LastError == "" {
		t.Error("Expected the last error to be recorded")
	}
}

func TestCoordinator_PermanentFailureStopsImmediately(t *testing.T) {
	g := linearGraph(&fakeStep{name: "a", fn: func(_ context.Context, _ protocol.RunContext) (*models.StepOutcome, error) {
		return nil, graph.Permanent("a", errors.New("campaign rejected"))
	}})

	coord, p := newTestCoordinator(t, g)

	run, err := coord.Trigger(t.Context(), "camp-1", "test", nil)
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	final := waitForStatus(t, p, run.ID, models.RunStatusFailed)

	if final.Attempt("a") != 1 {
		t.Errorf("Expected no retries on a permanent failure, got %d attempts", final.Attempt("a"))
	}
}

func TestCoordinator_CancelAtNodeBoundary(t *testing.T) {
	started := make(chan struct{})
	gate := make(chan struct{})

	var bExecuted atomic.Bool

	a := &fakeStep{name: "a", fn: func(ctx context.Context, _ protocol.RunContext) (*models.StepOutcome, error) {
		close(started)

		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		return &models.StepOutcome{Signal: models.SignalOK}, nil
	}}
	b := &fakeStep{name: "b", fn: func(_ context.Context, _ protocol.RunContext) (*models.StepOutcome, error) {
		bExecuted.Store(true)

		return &models.StepOutcome{Signal: models.SignalOK}, nil
	}}

	coord, p := newTestCoordinator(t, linearGraph(a, b))

	run, err := coord.Trigger(t.Context(), "camp-1", "test", nil)
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	<-started

	// Cancellation lands while a is executing; the run stops at the next
	// node boundary and b never runs.
	if err := coord.Cancel(t.Context(), run.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	close(gate)
	waitForStatus(t, p, run.ID, models.RunStatusCancelled)

	if bExecuted.Load() {
		t.Error("Expected the successor node not to execute after cancellation")
	}

	// Cancelling a terminal run is rejected.
	err = coord.Cancel(t.Context(), run.ID)
	if !errors.Is(err, persistence.ErrRunTerminal) {
		t.Errorf("Expected ErrRunTerminal, got %v", err)
	}
}

func TestCoordinator_SuspendAndResume(t *testing.T) {
	var calls atomic.Int32

	g := linearGraph(&fakeStep{name: "a", fn: func(_ context.Context, _ protocol.RunContext) (*models.StepOutcome, error) {
		if calls.Add(1) == 1 {
			return &models.StepOutcome{Signal: models.SignalSuspend}, nil
		}

		return &models.StepOutcome{Signal: models.SignalOK}, nil
	}})

	coord, p := newTestCoordinator(t, g)

	run, err := coord.Trigger(t.Context(), "camp-1", "test", nil)
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	waitForStatus(t, p, run.ID, models.RunStatusSuspended)

	// A suspended run still counts as active for admission.
	if _, err = coord.Trigger(t.Context(), "camp-1", "test", nil); !persistence.IsRunAlreadyActive(err) {
		t.Errorf("Expected ErrRunAlreadyActive while suspended, got %v", err)
	}

	resumed, err := coord.Resume(t.Context(), run.ID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	if resumed.CurrentNode != "a" {
		t.Errorf("Expected the run to resume at its suspension node, got %s", resumed.CurrentNode)
	}

	waitForStatus(t, p, run.ID, models.RunStatusSucceeded)
}

func TestCoordinator_Resume_NotSuspended(t *testing.T) {
	g := linearGraph(&fakeStep{name: "a"})
	coord, p := newTestCoordinator(t, g)

	run, err := coord.Trigger(t.Context(), "camp-1", "test", nil)
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	waitForStatus(t, p, run.ID, models.RunStatusSucceeded)

	_, err = coord.Resume(t.Context(), run.ID)
	if !errors.Is(err, ErrRunNotSuspended) {
		t.Errorf("Expected ErrRunNotSuspended, got %v", err)
	}
}

func TestCoordinator_CancelSuspendedRun(t *testing.T) {
	g := linearGraph(&fakeStep{name: "a", fn: func(_ context.Context, _ protocol.RunContext) (*models.StepOutcome, error) {
		return &models.StepOutcome{Signal: models.SignalSuspend}, nil
	}})

	coord, p := newTestCoordinator(t, g)

	run, err := coord.Trigger(t.Context(), "camp-1", "test", nil)
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	waitForStatus(t, p, run.ID, models.RunStatusSuspended)

	if err := coord.Cancel(t.Context(), run.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	waitForStatus(t, p, run.ID, models.RunStatusCancelled)
}
