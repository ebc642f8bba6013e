// Package observability provides structured logging and metrics collection.
//
// Logger wraps log/slog with a persistent component field.
// MetricsCollector records request latencies, poll ticks and job outcomes.
package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog with a persistent component name.
type Logger struct {
	inner     *slog.Logger
	component string
}

// NewLogger creates a JSON logger for a component at the given level.
// Output defaults to os.Stderr if w is nil.
func NewLogger(component string, w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{
		inner:     slog.New(handler).With(slog.String("component", component)),
		component: component,
	}
}

// NewLoggerWithHandler creates a logger with a custom slog handler.
func NewLoggerWithHandler(component string, h slog.Handler) *Logger {
	return &Logger{
		inner:     slog.New(h).With(slog.String("component", component)),
		component: component,
	}
}

// Discard returns a logger that drops everything. Used by tests and by
// constructors that received a nil logger.
func Discard() *Logger {
	return NewLoggerWithHandler("discard", slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps "debug", "info", "warn", "error" to a slog level.
// Unknown values yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Named returns a logger for a sub-component sharing the same handler.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		inner:     l.inner.With(slog.String("subcomponent", component)),
		component: component,
	}
}

// With returns a new Logger with an additional persistent field.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{
		inner:     l.inner.With(slog.Any(key, value)),
		component: l.component,
	}
}

func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

// Request logs one backend call.
func (l *Logger) Request(method, path string, status int, elapsed time.Duration, args ...any) {
	allArgs := append([]any{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Int64("elapsed_ms", elapsed.Milliseconds()),
	}, args...)
	l.inner.Debug("request", allArgs...)
}

// JobEvent logs a job lifecycle transition.
func (l *Logger) JobEvent(event, jobID string, args ...any) {
	allArgs := append([]any{
		slog.String("event", event),
		slog.String("job_id", jobID),
	}, args...)
	l.inner.Info("job", allArgs...)
}

// Component returns the component name associated with this logger.
func (l *Logger) Component() string {
	return l.component
}
