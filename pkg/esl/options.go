package esl

import (
	"log/slog"
	"os"

	"github.com/voxbridge/esl/pkg/esl/config"
	"github.com/voxbridge/esl/pkg/esl/observability"
)

// Options configures sessions and servers.
type Options struct {
	// Logger receives structured protocol and session logs. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Metrics records router and command metrics. Defaults to a no-op.
	Metrics observability.MetricsRecorder

	// MyEvents asks the switch for the events of the initiating leg only,
	// instead of filtered full-stream subscriptions. This prevents
	// tracking additional legs on the same session.
	MyEvents bool

	// Linger keeps the socket delivering events after hangup.
	Linger bool
}

// Option mutates Options.
type Option func(*Options)

func buildOptions(opts []Option) Options {
	o := Options{
		Logger:  slog.Default(),
		Metrics: observability.NoopMetrics{},
		Linger:  true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithMyEvents switches the session to myevents subscriptions.
func WithMyEvents(enabled bool) Option {
	return func(o *Options) { o.MyEvents = enabled }
}

// WithLinger controls post-hangup event delivery.
func WithLinger(enabled bool) Option {
	return func(o *Options) { o.Linger = enabled }
}

// FromConfig derives options from a config section. Recognized keys:
// log_level (string), log_file (string, rotated), metrics (bool),
// myevents (bool), linger (bool).
func FromConfig(cfg config.Config) Option {
	return func(o *Options) {
		level := observability.ParseLevel(cfg.String("log_level", "info"))
		if cfg.Has("log_file") {
			o.Logger = observability.NewRotatingLogger(cfg.String("log_file", ""), level)
		} else if cfg.Has("log_level") {
			o.Logger = observability.NewLogger(os.Stderr, level)
		}
		if cfg.Bool("metrics", false) {
			o.Metrics = observability.NewMetricsRecorder()
		}
		o.MyEvents = cfg.Bool("myevents", o.MyEvents)
		o.Linger = cfg.Bool("linger", o.Linger)
	}
}
