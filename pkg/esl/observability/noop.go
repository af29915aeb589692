package observability

import (
	"context"
	"time"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordEventRouted does nothing.
func (NoopMetrics) RecordEventRouted(_ context.Context, _ string) {}

// RecordCommand does nothing.
func (NoopMetrics) RecordCommand(_ context.Context, _ time.Duration, _ error) {}

// RecordHandlerFailure does nothing.
func (NoopMetrics) RecordHandlerFailure(_ context.Context, _ string) {}

// RecordBackgroundJob does nothing.
func (NoopMetrics) RecordBackgroundJob(_ context.Context, _ bool) {}
