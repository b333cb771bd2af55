// Package logger configures the hub's structured logger. Everything logs
// through log/slog; this package owns handler construction and the field
// helpers, so call sites never import slog's handler machinery directly.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger is the application logger. It is slog's logger; the alias keeps
// the rest of the codebase decoupled from the handler setup below.
type Logger = slog.Logger

// Field is one structured log attribute.
type Field = slog.Attr

// Levels understood by ParseLevel and Options.Level.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError

	// LevelFatal suppresses everything; used by tests that want silence.
	LevelFatal = slog.Level(12)
)

// ParseLevel maps a config string to a level. Unknown strings mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Options configures logger construction.
type Options struct {
	// Output is the destination, stderr when nil.
	Output io.Writer

	// Level is the minimum level to emit.
	Level slog.Level

	// Format selects the handler: "json" (default) or "text".
	Format string
}

// New builds a logger from options.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	return slog.New(handler)
}

// Default returns the process-wide default logger.
func Default() *Logger {
	return slog.Default()
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(Options{Output: io.Discard, Level: LevelFatal})
}

// ══════════════════════════════════════════════════════════════════════════════
// FIELD HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// String creates a string field.
func String(key, value string) Field {
	return slog.String(key, value)
}

// Int creates an int field.
func Int(key string, value int) Field {
	return slog.Int(key, value)
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return slog.Int64(key, value)
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return slog.Bool(key, value)
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return slog.Duration(key, value)
}

// Time creates a time field.
func Time(key string, value time.Time) Field {
	return slog.Time(key, value)
}

// Any creates a field holding an arbitrary value.
func Any(key string, value interface{}) Field {
	return slog.Any(key, value)
}

// Err creates the conventional error field. Nil-safe.
func Err(err error) Field {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}
