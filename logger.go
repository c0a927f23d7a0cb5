package vecbench

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger for structured adapter diagnostics (build
// warnings, parameter traces).
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger on the given handler. A nil handler falls back
// to an info-level text handler on stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger emitting JSON records on stderr at the
// given minimum level.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger emitting human-readable records on stderr
// at the given minimum level.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards everything. The level is set
// above any record slog can emit.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)}))
}

// WithVariant returns a child Logger tagged with the algorithm variant, so
// interleaved builds stay attributable.
func (l *Logger) WithVariant(variant string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("variant", variant))}
}
