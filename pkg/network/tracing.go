package network

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for session spans.
const defaultTracerName = "imclient"

// startRequestSpan opens a client span for one request.
func (h *Handler) startRequestSpan(ctx context.Context, command string) (context.Context, trace.Span) {
	return h.tracer.Start(ctx, "imclient.request "+command,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("imclient.command", command),
			attribute.String("imclient.session_id", h.config.SessionID),
		),
	)
}

// endSpan records the outcome of an operation on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var rej *RejectedError
		if errors.As(err, &rej) {
			span.SetAttributes(attribute.Int("imclient.result", int(rej.Code)))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
