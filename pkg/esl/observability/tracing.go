package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("esl")

// StartExecuteSpan starts a span covering a dialplan application execution
// on a channel, from sendmsg until completion or interruption.
func StartExecuteSpan(ctx context.Context, app, channelUUID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "esl.execute."+app,
		trace.WithAttributes(
			attribute.String("app", app),
			attribute.String("channel.uuid", channelUUID),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartOriginateSpan starts a span covering an originate background job.
func StartOriginateSpan(ctx context.Context, destination string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "esl.originate",
		trace.WithAttributes(
			attribute.String("destination", destination),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
