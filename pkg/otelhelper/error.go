package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks a step span failed. The extra attributes typically carry
// the node and attempt so trace backends can group retries of one node.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
