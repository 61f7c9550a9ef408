package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adopshq/adflow/pkg/eventbus"
	"github.com/adopshq/adflow/pkg/events"
	"github.com/adopshq/adflow/pkg/metrics"
	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/otelhelper"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/protocol"
)

const defaultStepTimeout = 30 * time.Second

// EngineOptions carries the optional collaborators of an engine. Alerts, Bus
// and Metrics may be nil; the engine degrades to pure execution.
type EngineOptions struct {
	Alerts      protocol.AlertRaiser
	Bus         eventbus.EventBus
	Metrics     *metrics.Emitter
	Tracer      trace.Tracer
	Logger      *slog.Logger
	StepTimeout time.Duration
}

// Engine executes a workflow graph run node by node. Checkpointing is
// synchronous: Advance persists the run before returning, so a crash between
// step execution and checkpoint leaves the step "not yet completed" and it is
// re-executed with the same input snapshot on resume.
type Engine struct {
	graph       *Graph
	runs        persistence.RunRepository
	alerts      protocol.AlertRaiser
	bus         eventbus.EventBus
	metrics     *metrics.Emitter
	tracer      trace.Tracer
	logger      *slog.Logger
	stepTimeout time.Duration
}

func NewEngine(g *Graph, runs persistence.RunRepository, opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := opts.StepTimeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}

	tracer := opts.Tracer
	if tracer == nil {
		// Falls back to the global provider, a no-op until one is installed.
		tracer = otel.Tracer("adflow.graph")
	}

	return &Engine{
		graph:       g,
		runs:        runs,
		alerts:      opts.Alerts,
		bus:         opts.Bus,
		metrics:     opts.Metrics,
		tracer:      tracer,
		logger:      logger.With("module", "graph_engine", "graph", g.Name()),
		stepTimeout: timeout,
	}
}

// Graph returns the graph this engine executes.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Advance executes the node at run.CurrentNode, records a step record,
// resolves routing and checkpoints. The returned error is classified by the
// graph taxonomy; a nil return means the run advanced (possibly to a terminal
// or suspended state).
func (e *Engine) Advance(ctx context.Context, run *models.Run) error {
	if run.Status.Terminal() {
		return persistence.ErrRunTerminal
	}

	node := run.CurrentNode

	logger := e.logger.With("run_id", run.ID, "campaign_id", run.CampaignID, "node", node)

	step, ok := e.graph.Step(node)
	if !ok {
		rerr := &RoutingError{Node: node}

		return e.failRun(ctx, run, logger, fmt.Errorf("current node %q is not part of graph %s", node, e.graph.Name()), rerr)
	}

	snapshot := snapshotContext(run.Context)
	attempt := run.RecordAttempt(node)
	started := time.Now().UTC()

	logger.InfoContext(ctx, "Executing step", "attempt", attempt)

	spanCtx, span := otelhelper.StartSpan(ctx, e.tracer, "graph.engine execute",
		attribute.String(otelhelper.CampaignIDKey, run.CampaignID),
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.GraphNameKey, run.GraphName),
		attribute.String(otelhelper.NodeKey, node),
		attribute.Int(otelhelper.AttemptKey, attempt),
	)
	defer span.End()

	stepCtx, cancel := context.WithTimeout(spanCtx, e.stepTimeout)
	defer cancel()

	out, err := step.Execute(stepCtx, protocol.RunContext{
		RunID:      run.ID,
		CampaignID: run.CampaignID,
		Context:    run.Context,
		Logger:     logger,
	})

	finished := time.Now().UTC()

	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		// Per-step timeouts convert to transient failures.
		err = Transient(node, err)
	}

	if err != nil {
		otelhelper.SetError(span, err)

		return e.recordFailure(ctx, run, logger, snapshot, attempt, started, finished, err)
	}

	span.SetAttributes(attribute.String(otelhelper.OutcomeKey, string(out.Signal)))

	return e.recordSuccess(ctx, run, logger, snapshot, attempt, started, finished, out)
}

func (e *Engine) recordFailure(ctx context.Context, run *models.Run, logger *slog.Logger, snapshot map[string]any, attempt int, started, finished time.Time, err error) error {
	run.Steps = append(run.Steps, models.StepRecord{
		Node:       run.CurrentNode,
		Attempt:    attempt,
		Input:      snapshot,
		Error:      err.Error(),
		StartedAt:  started,
		FinishedAt: finished,
	})
	run.LastError = err.Error()

	transient := IsTransient(err)
	if !transient {
		// Permanent and unclassified failures terminate the run.
		run.Status = models.RunStatusFailed
	}

	logger.ErrorContext(ctx, "Step failed", "error", err, "attempt", attempt, "transient", transient)
	e.metrics.RecordStep(ctx, run.CurrentNode, "error", finished.Sub(started))
	e.publish(ctx, run, events.StepFailed{
		BaseEvent: events.NewBaseEvent(events.StepFailedEvent, run.CampaignID, run.ID),
		Node:      run.CurrentNode,
		Attempt:   attempt,
		Error:     err.Error(),
		Transient: transient,
	})

	if cerr := e.checkpoint(ctx, run); cerr != nil {
		return cerr
	}

	return err
}

func (e *Engine) recordSuccess(ctx context.Context, run *models.Run, logger *slog.Logger, snapshot map[string]any, attempt int, started, finished time.Time, out *models.StepOutcome) error {
	node := run.CurrentNode

	run.Steps = append(run.Steps, models.StepRecord{
		Node:       node,
		Attempt:    attempt,
		Input:      snapshot,
		Outcome:    out,
		StartedAt:  started,
		FinishedAt: finished,
	})
	run.SetStepResult(node, out.Data)

	logger.InfoContext(ctx, "Step completed", "signal", out.Signal, "attempt", attempt)
	e.metrics.RecordStep(ctx, node, string(out.Signal), finished.Sub(started))
	e.publish(ctx, run, events.StepCompleted{
		BaseEvent: events.NewBaseEvent(events.StepCompletedEvent, run.CampaignID, run.ID),
		Node:      node,
		Signal:    out.Signal,
		Attempt:   attempt,
		Duration:  finished.Sub(started),
	})

	if out.Signal == models.SignalSuspend {
		run.Status = models.RunStatusSuspended

		if cerr := e.checkpoint(ctx, run); cerr != nil {
			return cerr
		}

		e.publish(ctx, run, events.RunSuspended{
			BaseEvent: events.NewBaseEvent(events.RunSuspendedEvent, run.CampaignID, run.ID),
			Node:      node,
		})

		return nil
	}

	next, rerr := e.graph.Route(node, out)
	if rerr != nil {
		return e.failRun(ctx, run, logger, rerr, rerr)
	}

	if next == Terminal {
		run.Status = models.RunStatusSucceeded
	} else {
		run.CurrentNode = next
	}

	return e.checkpoint(ctx, run)
}

// failRun marks the run Failed for a routing defect, raises a system-error
// alert and checkpoints. The original routing error is returned.
func (e *Engine) failRun(ctx context.Context, run *models.Run, logger *slog.Logger, cause error, rerr error) error {
	run.Status = models.RunStatusFailed
	run.LastError = cause.Error()

	logger.ErrorContext(ctx, "Run failed on routing defect", "error", cause)

	if e.alerts != nil {
		_, aerr := e.alerts.Raise(ctx, run.CampaignID, models.AlertCategorySystemError, models.SeverityCritical,
			fmt.Sprintf("workflow %s failed at node %s: %v", run.GraphName, run.CurrentNode, cause))
		if aerr != nil {
			logger.ErrorContext(ctx, "Failed to raise system-error alert", "error", aerr)
		}
	}

	if cerr := e.checkpoint(ctx, run); cerr != nil {
		return cerr
	}

	return rerr
}

// checkpoint persists the run with an expected-version check. On failure the
// in-memory mutations are not considered durable; the caller must re-read the
// run before retrying.
func (e *Engine) checkpoint(ctx context.Context, run *models.Run) error {
	run.UpdatedAt = time.Now().UTC()

	err := e.runs.SaveRun(ctx, run, run.Version)
	if err != nil {
		return &CheckpointError{RunID: run.ID, Err: err}
	}

	return nil
}

func (e *Engine) publish(ctx context.Context, run *models.Run, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	err := e.bus.Publish(ctx, run.CampaignID, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event", "error", err, "event_type", event.GetType())
	}
}

// snapshotContext copies the run context for the step record's input
// snapshot, including the nested step-results map.
func snapshotContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}

	snapshot := maps.Clone(ctx)

	if steps, ok := ctx["steps"].(map[string]any); ok {
		snapshot["steps"] = maps.Clone(steps)
	}

	return snapshot
}
