// Package log provides the structured logging interface used by sciforecast estimators.
//
// The Logger interface mirrors log/slog so that callers can plug in slog, zerolog or the
// in-memory TestLogger. Estimators attach their name and a per-instance id with With and log
// every fit/predict call together with the ML attribute keys defined in attributes.go:
//
//	logger := log.GetLogger().With(
//	    log.ModelNameKey, "GroupbyCategoryForecaster",
//	    log.EstimatorIDKey, id,
//	)
//	logger.Debug("fitting category",
//	    log.OperationKey, log.OperationFit,
//	    log.CategoryKey, "smooth",
//	    log.InstancesKey, 12,
//	)
package log

import (
	"context"
)

// Logger is a structured logger compatible with log/slog.
type Logger interface {
	// Debug logs detailed diagnostics, e.g. one line per routed category.
	Debug(msg string, fields ...any)

	// Info logs operational information such as completed fits.
	Info(msg string, fields ...any)

	// Warn logs recoverable problems.
	Warn(msg string, fields ...any)

	// Error logs failures. Pass the error under ErrAttrKey to get its stack trace emitted.
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level are emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level is a logging level with the same numeric values as slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider hands out loggers, optionally named after a component.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
