package embedpack

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with embedpack-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithOutput adds the output location to the logger.
func (l *Logger) WithOutput(out string) *Logger {
	return &Logger{
		Logger: l.Logger.With("output", out),
	}
}

// LogBatch logs one processed batch.
func (l *Logger) LogBatch(ctx context.Context, batch, lines, surviving int, documents int, tokens int64) {
	l.DebugContext(ctx, "batch appended",
		"batch", batch,
		"lines", lines,
		"surviving", surviving,
		"documents", documents,
		"tokens", tokens,
	)
}

// LogFinalize logs the end of a run.
func (l *Logger) LogFinalize(ctx context.Context, documents int, tokens int64, batches int, elapsed time.Duration) {
	l.InfoContext(ctx, "run finalized",
		"documents", documents,
		"tokens", tokens,
		"batches", batches,
		"elapsed", elapsed,
	)
}

// LogAbort logs an aborted run.
func (l *Logger) LogAbort(ctx context.Context, documents int, err error) {
	l.ErrorContext(ctx, "run aborted",
		"documents", documents,
		"error", err,
	)
}

// LogPublish logs one uploaded file or the failure of a publish step.
func (l *Logger) LogPublish(ctx context.Context, name string, bytes int64, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "publish failed",
			"file", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "file published",
			"file", name,
			"bytes", bytes,
			"elapsed", elapsed,
		)
	}
}
