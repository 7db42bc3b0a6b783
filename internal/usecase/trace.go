package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var usecaseTracer = otel.Tracer("live-match/internal/usecase")

// startUsecaseSpan only opens a child span when the caller is already traced.
func startUsecaseSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if !trace.SpanContextFromContext(ctx).IsValid() {
		return ctx, trace.SpanFromContext(ctx)
	}
	return usecaseTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// startJobSpan opens a root span for work started by a ticker.
func startJobSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return usecaseTracer.Start(ctx, name, trace.WithNewRoot(), trace.WithAttributes(attrs...))
}

func recordUpdateResult(span trace.Span, res UpdateResult) {
	span.SetAttributes(
		attribute.String("match.update_status", string(res.Status)),
		attribute.Int("match.fields_updated", len(res.FieldsUpdated)),
	)
	if res.Status == UpdateStatusRejected {
		span.SetStatus(codes.Error, res.Reason)
	}
}
