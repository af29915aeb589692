package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records protocol engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEventRouted records one event dispatched to handlers.
	RecordEventRouted(ctx context.Context, eventName string)

	// RecordCommand records a synchronous command round trip.
	RecordCommand(ctx context.Context, duration time.Duration, err error)

	// RecordHandlerFailure records a handler panic.
	RecordHandlerFailure(ctx context.Context, eventName string)

	// RecordBackgroundJob records a completed background job.
	RecordBackgroundJob(ctx context.Context, success bool)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	eventsRouted    metric.Int64Counter
	commandLatency  metric.Float64Histogram
	commandErrors   metric.Int64Counter
	handlerFailures metric.Int64Counter
	backgroundJobs  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("esl")

	eventsRouted, err := meter.Int64Counter("esl.events.routed",
		metric.WithDescription("Number of events dispatched to handlers"),
	)
	if err != nil {
		return nil, err
	}

	commandLatency, err := meter.Float64Histogram("esl.command.latency_ms",
		metric.WithDescription("Synchronous command round trip latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	commandErrors, err := meter.Int64Counter("esl.command.errors",
		metric.WithDescription("Number of failed synchronous commands"),
	)
	if err != nil {
		return nil, err
	}

	handlerFailures, err := meter.Int64Counter("esl.handler.failures",
		metric.WithDescription("Number of event handler panics"),
	)
	if err != nil {
		return nil, err
	}

	backgroundJobs, err := meter.Int64Counter("esl.jobs.completed",
		metric.WithDescription("Number of completed background jobs"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		eventsRouted:    eventsRouted,
		commandLatency:  commandLatency,
		commandErrors:   commandErrors,
		handlerFailures: handlerFailures,
		backgroundJobs:  backgroundJobs,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEventRouted records one dispatched event.
func (m *otelMetrics) RecordEventRouted(ctx context.Context, eventName string) {
	m.eventsRouted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", eventName),
	))
}

// RecordCommand records a command round trip.
func (m *otelMetrics) RecordCommand(ctx context.Context, duration time.Duration, err error) {
	m.commandLatency.Record(ctx, float64(duration.Milliseconds()))
	if err != nil {
		m.commandErrors.Add(ctx, 1)
	}
}

// RecordHandlerFailure records a handler panic.
func (m *otelMetrics) RecordHandlerFailure(ctx context.Context, eventName string) {
	m.handlerFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", eventName),
	))
}

// RecordBackgroundJob records a completed background job.
func (m *otelMetrics) RecordBackgroundJob(ctx context.Context, success bool) {
	m.backgroundJobs.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
}
