// Package logger builds the slog.Logger used across the notifier, with a
// configurable level and output format (text or JSON), plus helpers for
// attaching run and collector scope to log lines.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Attribute keys shared by every component so log queries stay uniform.
const (
	KeyRunID       = "run_id"
	KeyRetailer    = "retailer"
	KeyDestination = "destination"
	KeyComponent   = "component"
	KeyRequestID   = "request_id"
)

// New creates a *slog.Logger writing to stderr.
// Level: "debug", "info", "warn", "error" (default: "info").
// Format: "json" or "text" (default: "text").
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter creates a *slog.Logger writing to w.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Discard returns a logger that drops everything. Used by tests and as the
// sink for dry runs that only print the summary.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel converts a level string to slog.Level, case-insensitively.
// Unrecognized values return LevelInfo.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// ForRun scopes l to a single orchestrator run.
func ForRun(l *slog.Logger, runID string) *slog.Logger {
	return l.With(KeyRunID, runID)
}

// ForCollector scopes l to one retailer's collector invocation.
func ForCollector(l *slog.Logger, retailer string) *slog.Logger {
	return l.With(KeyRetailer, retailer)
}

// ForDestination scopes l to one notification destination.
func ForDestination(l *slog.Logger, name string) *slog.Logger {
	return l.With(KeyDestination, name)
}

// ForComponent tags l with the emitting component name.
func ForComponent(l *slog.Logger, name string) *slog.Logger {
	return l.With(KeyComponent, name)
}
