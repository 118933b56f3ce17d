// Package log provides structured logging for the concierge service,
// built on log/slog. All components receive a Logger through their
// constructors; nothing logs through the global default.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is an alias so callers depend on this package rather than on
// log/slog directly.
type Logger = *slog.Logger

// Config controls handler construction.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Unknown values
	// fall back to info.
	Level string
	// JSON selects the JSON handler; otherwise logs are key=value text.
	JSON bool
	// AddSource attaches file:line to every record.
	AddSource bool
}

// New builds a Logger writing to stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter builds a Logger writing to w. Tests use this to capture
// output.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// NewNop returns a Logger that discards everything. Intended for tests
// that do not assert on log output.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(s string) slog.Level {
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
