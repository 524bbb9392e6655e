package bcache

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with cache-specific helpers.
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
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithDevice adds a device field to the logger.
func (l *Logger) WithDevice(dev uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("dev", dev),
	}
}

// LogRead logs a block read.
func (l *Logger) LogRead(ctx context.Context, dev, blockno uint32, hit bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "block read failed",
			"dev", dev,
			"blockno", blockno,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "block read",
		"dev", dev,
		"blockno", blockno,
		"hit", hit,
	)
}

// LogWrite logs a block write.
func (l *Logger) LogWrite(ctx context.Context, dev, blockno uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "block write failed",
			"dev", dev,
			"blockno", blockno,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "block written",
		"dev", dev,
		"blockno", blockno,
	)
}

// LogSteal logs a buffer moved between shards.
func (l *Logger) LogSteal(ctx context.Context, donor, dst int, dev, blockno uint32) {
	l.InfoContext(ctx, "buffer stolen",
		"donor_shard", donor,
		"shard", dst,
		"dev", dev,
		"blockno", blockno,
	)
}

// LogFault logs an unrecoverable fault just before the cache panics.
func (l *Logger) LogFault(ctx context.Context, f *Fault) {
	l.ErrorContext(ctx, "cache fault",
		"op", f.Op,
		"error", f.Err,
	)
}
