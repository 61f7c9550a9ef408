// Package metrics provides the fire-and-forget operational telemetry channel.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Emitter records step outcome counts and latencies keyed by {node, outcome}.
// A nil Emitter is valid and records nothing; without a configured meter
// provider the global meter is a no-op, so emission never fails a run.
type Emitter struct {
	steps   metric.Int64Counter
	latency metric.Float64Histogram
	runs    metric.Int64Counter
}

func NewEmitter() (*Emitter, error) {
	meter := otel.Meter("github.com/adopshq/adflow")

	steps, err := meter.Int64Counter("adflow.step.outcomes",
		metric.WithDescription("Step executions by node and outcome"))
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("adflow.step.duration",
		metric.WithDescription("Step execution latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter("adflow.run.outcomes",
		metric.WithDescription("Terminal runs by graph and status"))
	if err != nil {
		return nil, err
	}

	return &Emitter{steps: steps, latency: latency, runs: runs}, nil
}

// RecordStep counts one step execution and its latency.
func (e *Emitter) RecordStep(ctx context.Context, node, outcome string, d time.Duration) {
	if e == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("node", node),
		attribute.String("outcome", outcome),
	)

	e.steps.Add(ctx, 1, attrs)
	e.latency.Record(ctx, float64(d.Milliseconds()), attrs)
}

// RecordRun counts one terminal run.
func (e *Emitter) RecordRun(ctx context.Context, graph, status string) {
	if e == nil {
		return
	}

	e.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("graph", graph),
		attribute.String("status", status),
	))
}
