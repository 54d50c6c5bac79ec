package logger

import "context"

// noopLogger discards everything. Used in tests and as a safe default.
type noopLogger struct{}

// NewNoopLogger returns a logger that drops all entries.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

func (n *noopLogger) Debug(ctx context.Context, msg string, fields ...Fields)            {}
func (n *noopLogger) Info(ctx context.Context, msg string, fields ...Fields)             {}
func (n *noopLogger) Warn(ctx context.Context, msg string, fields ...Fields)             {}
func (n *noopLogger) Error(ctx context.Context, msg string, err error, fields ...Fields) {}
func (n *noopLogger) Fatal(ctx context.Context, msg string, err error, fields ...Fields) {}
func (n *noopLogger) WithFields(fields Fields) Logger                                    { return n }
func (n *noopLogger) WithComponent(component string) Logger                              { return n }
