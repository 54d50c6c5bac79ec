// Package logger provides the structured logging interface for the metrics
// gate, backed by zap. Log entries are JSON, carry the component name, and
// fold in the request id and OpenTelemetry trace context when present.
package logger

import "context"

// Fields is a bag of structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger is the context-aware structured logger used by every component.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	Error(ctx context.Context, msg string, err error, fields ...Fields)
	Fatal(ctx context.Context, msg string, err error, fields ...Fields)

	// WithFields returns a logger that attaches the fields to every entry.
	WithFields(fields Fields) Logger

	// WithComponent returns a logger scoped to a named component.
	WithComponent(component string) Logger
}
