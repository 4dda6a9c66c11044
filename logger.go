package visearch

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with catalog-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses the default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	})
	return &Logger{Logger: slog.New(handler)}
}

// LogSnapshot logs a snapshot save operation.
func (l *Logger) LogSnapshot(pathPrefix string, size int, err error) {
	if err != nil {
		l.Error("snapshot failed",
			"path_prefix", pathPrefix,
			"error", err,
		)
	} else {
		l.Info("snapshot saved",
			"path_prefix", pathPrefix,
			"catalog_size", size,
		)
	}
}

// LogRebuild logs a full index rebuild.
func (l *Logger) LogRebuild(dir string, size int) {
	l.Info("catalog index rebuilt",
		"dir", dir,
		"catalog_size", size,
	)
}
