package client

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for the runtime.
const defaultTracerName = "falk"

func newTracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		return otel.Tracer(defaultTracerName)
	}
	return tp.Tracer(defaultTracerName)
}

// startRoundTrip opens the span covering one mutation round trip.
func (r *Runtime) startRoundTrip(ctx context.Context, req requestInfo) (context.Context, trace.Span) {
	return r.tracer.Start(ctx,
		fmt.Sprintf("falk.%s", req.callback),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("falk.request_id", int64(req.id)),
			attribute.String("falk.node_id", req.nodeID),
			attribute.String("falk.callback", req.callback),
			attribute.String("falk.transport", req.transport),
		),
	)
}

// endRoundTrip records the result and ends span.
func endRoundTrip(span trace.Span, err error, rendered int) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.Int("falk.rendered", rendered))
	span.End()
}
