// Package coordinator schedules workflow runs: it enforces per-campaign
// single-flight admission, drives runs through their graphs with a worker
// pool, retries transient failures with exponential backoff and finalizes
// run lifecycle state.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/adopshq/adflow/pkg/eventbus"
	"github.com/adopshq/adflow/pkg/events"
	"github.com/adopshq/adflow/pkg/graph"
	"github.com/adopshq/adflow/pkg/metrics"
	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/protocol"
)

const (
	DefaultWorkers   = 4
	defaultQueueSize = 256
)

// ErrRunNotSuspended is returned when Resume targets a run that is not
// waiting at a suspension point.
var ErrRunNotSuspended = errors.New("run is not suspended")

// ErrUnknownGraph is returned when Trigger names a graph that is not in the
// catalog.
var ErrUnknownGraph = errors.New("unknown workflow graph")

// Config tunes the worker pool and retry policy. Zero values fall back to
// the defaults.
type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	StepTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}

	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}

	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}

	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}

	return c
}

// Options carries the coordinator's collaborators. Alerts, Bus, Metrics and
// Tracer may be nil.
type Options struct {
	Alerts  protocol.AlertRaiser
	Bus     eventbus.EventBus
	Metrics *metrics.Emitter
	Tracer  trace.Tracer
	Logger  *slog.Logger
	Config  Config
}

// Coordinator owns run admission and execution for a set of workflow graphs.
type Coordinator struct {
	workerID    string
	persistence persistence.Persistence
	graphs      map[string]*graph.Graph
	engines     map[string]*graph.Engine
	bus         eventbus.EventBus
	metrics     *metrics.Emitter
	logger      *slog.Logger
	cfg         Config

	queue chan string
	stop  chan struct{}
	wg    sync.WaitGroup
}

// NewCoordinator builds a coordinator and one engine per catalog graph.
func NewCoordinator(p persistence.Persistence, graphs map[string]*graph.Graph, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := opts.Config.withDefaults()
	workerID := uuid.New().String()
	logger = logger.With("module", "coordinator", "worker_id", workerID)

	engines := make(map[string]*graph.Engine, len(graphs))
	for name, g := range graphs {
		engines[name] = graph.NewEngine(g, p.Runs(), graph.EngineOptions{
			Alerts:      opts.Alerts,
			Bus:         opts.Bus,
			Metrics:     opts.Metrics,
			Tracer:      opts.Tracer,
			Logger:      logger,
			StepTimeout: cfg.StepTimeout,
		})
	}

	return &Coordinator{
		workerID:    workerID,
		persistence: p,
		graphs:      graphs,
		engines:     engines,
		bus:         opts.Bus,
		metrics:     opts.Metrics,
		logger:      logger,
		cfg:         cfg,
		queue:       make(chan string, cfg.QueueSize),
		stop:        make(chan struct{}),
	}
}

// Start launches the worker pool and re-enqueues runs that were in flight
// when the previous process stopped.
func (c *Coordinator) Start(ctx context.Context) {
	c.logger.InfoContext(ctx, "Starting run coordinator", "workers", c.cfg.Workers)

	for i := range c.cfg.Workers {
		c.wg.Add(1)

		go c.worker(i)
	}

	c.recoverRuns(ctx)
}

// recoverRuns reconciles durable state after a restart. Checkpoints survive a
// crash but the queue and retry timers do not, so every non-terminal run is
// re-admitted; at-least-once step semantics make re-executing an unrecorded
// step safe. A run whose step records do not replay to its checkpointed node
// is failed instead of re-executed.
func (c *Coordinator) recoverRuns(ctx context.Context) {
	active, err := c.persistence.Runs().ActiveRuns(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to list runs for recovery", "error", err)

		return
	}

	recovered := 0

	for _, run := range active {
		// A suspended run has no work pending; it waits for Resume. A
		// cancellation requested before the crash still needs finalizing.
		if run.Status == models.RunStatusSuspended && !run.CancelRequested {
			continue
		}

		g, ok := c.graphs[run.GraphName]
		if !ok {
			run.LastError = fmt.Sprintf("graph %s is not in the catalog", run.GraphName)
			c.finalize(ctx, run, models.RunStatusFailed)

			continue
		}

		if rerr := verifyReplay(g, run); rerr != nil {
			run.LastError = rerr.Error()
			c.finalize(ctx, run, models.RunStatusFailed)

			continue
		}

		c.logger.InfoContext(ctx, "Recovering in-flight run",
			"run_id", run.ID, "campaign_id", run.CampaignID, "node", run.CurrentNode)
		c.enqueue(run.ID)
		recovered++
	}

	if recovered > 0 {
		c.logger.InfoContext(ctx, "Recovery complete", "runs", recovered)
	}
}

// verifyReplay walks the run's step records through its graph and checks they
// route exactly to the checkpointed current node, rejecting orphaned state.
func verifyReplay(g *graph.Graph, run *models.Run) error {
	node, err := graph.Replay(g, run)
	if err != nil {
		return err
	}

	if node != run.CurrentNode {
		return fmt.Errorf("step records replay to node %q but the run is checkpointed at %q", node, run.CurrentNode)
	}

	return nil
}

// Stop drains the worker pool. In-flight steps finish; queued runs stay
// durable and are picked up on the next start.
func (c *Coordinator) Stop(ctx context.Context) {
	c.logger.InfoContext(ctx, "Stopping run coordinator")
	close(c.stop)
	c.wg.Wait()
}

// Trigger admits a new run for a campaign. At most one run per campaign may
// be active; a concurrent duplicate returns ErrRunAlreadyActive.
func (c *Coordinator) Trigger(ctx context.Context, campaignID, graphName string, runContext map[string]any) (*models.Run, error) {
	g, ok := c.graphs[graphName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGraph, graphName)
	}

	if runContext == nil {
		runContext = make(map[string]any)
	}

	run := &models.Run{
		ID:          uuid.New().String(),
		CampaignID:  campaignID,
		GraphName:   graphName,
		EntryNode:   g.Entry(),
		CurrentNode: g.Entry(),
		Status:      models.RunStatusPending,
		Context:     runContext,
	}

	err := c.persistence.Runs().CreateRun(ctx, run)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatusRunning

	err = c.persistence.Runs().SaveRun(ctx, run, run.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to mark run %s running: %w", run.ID, err)
	}

	c.logger.InfoContext(ctx, "Run triggered",
		"run_id", run.ID, "campaign_id", campaignID, "graph", graphName)
	c.publish(ctx, run.CampaignID, events.RunStarted{
		BaseEvent: c.baseEvent(events.RunStartedEvent, run),
		GraphName: graphName,
		EntryNode: run.EntryNode,
	})

	c.enqueue(run.ID)

	return run, nil
}

// Resume continues a suspended run from its current node.
func (c *Coordinator) Resume(ctx context.Context, runID string) (*models.Run, error) {
	for {
		run, err := c.persistence.Runs().RunByID(ctx, runID)
		if err != nil {
			return nil, err
		}

		if run.Status != models.RunStatusSuspended {
			return nil, fmt.Errorf("%w: run %s is %s", ErrRunNotSuspended, runID, run.Status)
		}

		g, ok := c.graphs[run.GraphName]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownGraph, run.GraphName)
		}

		if rerr := verifyReplay(g, run); rerr != nil {
			return nil, fmt.Errorf("cannot resume run %s: %w", runID, rerr)
		}

		run.Status = models.RunStatusRunning
		// The suspension wait is not a failure; the node re-enters with a
		// fresh attempt budget.
		run.ResetAttempts(run.CurrentNode)

		err = c.persistence.Runs().SaveRun(ctx, run, run.Version)
		if persistence.IsVersionConflict(err) {
			continue // raced with another resume, re-read and re-check
		}

		if err != nil {
			return nil, fmt.Errorf("failed to resume run %s: %w", runID, err)
		}

		c.logger.InfoContext(ctx, "Run resumed", "run_id", runID, "node", run.CurrentNode)
		c.publish(ctx, run.CampaignID, events.RunResumed{
			BaseEvent: c.baseEvent(events.RunResumedEvent, run),
			Node:      run.CurrentNode,
		})

		c.enqueue(runID)

		return run, nil
	}
}

// Cancel requests cooperative cancellation. The run stops at the next node
// boundary; the step currently executing is never interrupted mid-flight.
func (c *Coordinator) Cancel(ctx context.Context, runID string) error {
	for {
		run, err := c.persistence.Runs().RunByID(ctx, runID)
		if err != nil {
			return err
		}

		if run.Status.Terminal() {
			return persistence.NewRunError("Cancel", runID, persistence.ErrRunTerminal)
		}

		if run.CancelRequested {
			return nil
		}

		run.CancelRequested = true
		wasSuspended := run.Status == models.RunStatusSuspended

		err = c.persistence.Runs().SaveRun(ctx, run, run.Version)
		if persistence.IsVersionConflict(err) {
			continue
		}

		if err != nil {
			return fmt.Errorf("failed to request cancellation of run %s: %w", runID, err)
		}

		c.logger.InfoContext(ctx, "Run cancellation requested", "run_id", runID)

		// A suspended run has no worker watching it, so finalization has to
		// be scheduled here.
		if wasSuspended {
			c.enqueue(runID)
		}

		return nil
	}
}

func (c *Coordinator) worker(id int) {
	defer c.wg.Done()

	logger := c.logger.With("worker", id)
	logger.Info("Worker started")

	for {
		select {
		case <-c.stop:
			logger.Info("Worker stopped")

			return
		case runID := <-c.queue:
			c.advanceRun(context.Background(), runID)
		}
	}
}

// advanceRun drives a run forward until it reaches a terminal or suspended
// state, or until a transient failure schedules a delayed retry. Scheduling
// releases the worker; the retry re-enters through the queue.
func (c *Coordinator) advanceRun(ctx context.Context, runID string) {
	for {
		run, err := c.persistence.Runs().RunByID(ctx, runID)
		if err != nil {
			c.logger.ErrorContext(ctx, "Failed to load run", "run_id", runID, "error", err)

			return
		}

		if run.Status.Terminal() {
			return
		}

		if run.CancelRequested {
			c.finalize(ctx, run, models.RunStatusCancelled)

			return
		}

		if run.Status == models.RunStatusSuspended {
			return
		}

		engine, ok := c.engines[run.GraphName]
		if !ok {
			run.LastError = fmt.Sprintf("graph %s is not in the catalog", run.GraphName)
			c.finalize(ctx, run, models.RunStatusFailed)

			return
		}

		err = engine.Advance(ctx, run)
		if err == nil {
			switch run.Status {
			case models.RunStatusSucceeded:
				c.publish(ctx, run.CampaignID, events.RunSucceeded{
					BaseEvent: c.baseEvent(events.RunSucceededEvent, run),
					Duration:  time.Since(run.CreatedAt),
					Steps:     len(run.Steps),
				})
				c.metrics.RecordRun(ctx, run.GraphName, string(run.Status))

				return
			case models.RunStatusSuspended:
				return
			default:
				continue
			}
		}

		if errors.Is(err, persistence.ErrRunTerminal) {
			return
		}

		if graph.IsTransient(err) {
			c.scheduleRetry(ctx, run)

			return
		}

		// Permanent and routing failures: the engine already checkpointed the
		// run as Failed.
		c.publish(ctx, run.CampaignID, events.RunFailed{
			BaseEvent: c.baseEvent(events.RunFailedEvent, run),
			Error:     run.LastError,
			Duration:  time.Since(run.CreatedAt),
		})
		c.metrics.RecordRun(ctx, run.GraphName, string(models.RunStatusFailed))

		return
	}
}

// scheduleRetry re-enqueues the run after backoff, or fails it when the
// node's attempt budget is exhausted. The backoff wait holds no worker.
func (c *Coordinator) scheduleRetry(ctx context.Context, run *models.Run) {
	node := run.CurrentNode
	attempt := run.Attempt(node)

	if attempt >= c.cfg.MaxAttempts {
		c.logger.ErrorContext(ctx, "Retry budget exhausted",
			"run_id", run.ID, "node", node, "attempts", attempt, "error", run.LastError)
		c.finalize(ctx, run, models.RunStatusFailed)

		return
	}

	delay := backoff(attempt, c.cfg.BaseDelay, c.cfg.MaxDelay)

	c.logger.WarnContext(ctx, "Scheduling retry",
		"run_id", run.ID, "node", node, "attempt", attempt, "delay", delay)

	runID := run.ID

	time.AfterFunc(delay, func() {
		c.enqueue(runID)
	})
}

// finalize moves a run to a terminal status with a conditional write,
// re-reading on version conflicts.
func (c *Coordinator) finalize(ctx context.Context, run *models.Run, status models.RunStatus) {
	for {
		run.Status = status

		err := c.persistence.Runs().SaveRun(ctx, run, run.Version)
		if persistence.IsVersionConflict(err) {
			fresh, rerr := c.persistence.Runs().RunByID(ctx, run.ID)
			if rerr != nil {
				c.logger.ErrorContext(ctx, "Failed to re-read run during finalize", "run_id", run.ID, "error", rerr)

				return
			}

			if fresh.Status.Terminal() {
				return
			}

			run = fresh

			continue
		}

		if err != nil {
			c.logger.ErrorContext(ctx, "Failed to finalize run", "run_id", run.ID, "status", status, "error", err)

			return
		}

		break
	}

	c.logger.InfoContext(ctx, "Run finalized", "run_id", run.ID, "status", status)
	c.metrics.RecordRun(ctx, run.GraphName, string(status))

	switch status {
	case models.RunStatusCancelled:
		c.publish(ctx, run.CampaignID, events.RunCancelled{
			BaseEvent: c.baseEvent(events.RunCancelledEvent, run),
		})
	case models.RunStatusFailed:
		c.publish(ctx, run.CampaignID, events.RunFailed{
			BaseEvent: c.baseEvent(events.RunFailedEvent, run),
			Error:     run.LastError,
			Duration:  time.Since(run.CreatedAt),
		})
	}
}

func (c *Coordinator) enqueue(runID string) {
	select {
	case c.queue <- runID:
	default:
		// Queue full: hand off without blocking the caller.
		go func() {
			select {
			case c.queue <- runID:
			case <-c.stop:
			}
		}()
	}
}

func (c *Coordinator) baseEvent(eventType events.EventType, run *models.Run) events.BaseEvent {
	base := events.NewBaseEvent(eventType, run.CampaignID, run.ID)
	base.WorkerID = c.workerID

	return base
}

func (c *Coordinator) publish(ctx context.Context, campaignID string, event eventbus.Event) {
	if c.bus == nil {
		return
	}

	err := c.bus.Publish(ctx, campaignID, event)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish event", "error", err, "event_type", event.GetType())
	}
}
