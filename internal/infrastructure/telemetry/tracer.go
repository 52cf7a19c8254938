package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StartHTTPSpan starts a server span for an inbound request
func StartHTTPSpan(ctx context.Context, tracer trace.Tracer, method, route string) (context.Context, trace.Span) {
	return tracer.Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
		),
	)
}

// StartScoreSpan starts the span covering one scoring request
func StartScoreSpan(ctx context.Context, tracer trace.Tracer, merchant string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "scoring.Score",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("fraud.merchant", merchant)),
	)
}

// StartStorageSpan starts a client span for an artifact store call
func StartStorageSpan(ctx context.Context, tracer trace.Tracer, backend, operation, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "storage."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("storage.backend", backend),
			attribute.String("storage.object", name),
		),
	)
}

// TraceID returns the trace id of the span in ctx, or "" if there is none
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
