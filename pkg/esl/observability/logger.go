// Package observability provides structured logging, metrics, and tracing
// helpers for the event socket engine.
//
// Features:
//   - Structured logging via slog (Go stdlib), optionally to a rotating file
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a text-handler logger at the given level writing to w.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewRotatingLogger builds a JSON-handler logger writing to a size-rotated
// file. The caller owns no handle; rotation is managed internally.
func NewRotatingLogger(path string, level slog.Level) *slog.Logger {
	out := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 1,
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogEventReceived logs a routed event at debug level.
func LogEventReceived(logger *slog.Logger, name, channelUUID string) {
	if logger == nil {
		return
	}
	logger.Debug("event received",
		slog.String("event", name),
		slog.String("channel_uuid", channelUUID),
	)
}

// LogCommandSent logs a synchronous command send.
func LogCommandSent(logger *slog.Logger, command string) {
	if logger == nil {
		return
	}
	logger.Debug("command sent",
		slog.String("command", firstLine(command)),
	)
}

// LogHandlerFailure logs a handler panic or error without propagating it.
func LogHandlerFailure(logger *slog.Logger, event string, value any) {
	if logger == nil {
		return
	}
	logger.Error("event handler failed",
		slog.String("event", event),
		slog.Any("panic", value),
	)
}

// LogChannelState logs a channel state transition.
func LogChannelState(logger *slog.Logger, channelUUID, state, callState string) {
	if logger == nil {
		return
	}
	logger.Debug("channel state changed",
		slog.String("channel_uuid", channelUUID),
		slog.String("state", state),
		slog.String("call_state", callState),
	)
}

// LogDisconnect logs a peer-initiated disconnect.
func LogDisconnect(logger *slog.Logger, contentType string) {
	if logger == nil {
		return
	}
	logger.Info("peer disconnected",
		slog.String("content_type", contentType),
	)
}

// TimedOperation measures the duration of an operation. The returned
// function reports the elapsed time when called.
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
