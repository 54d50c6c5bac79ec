// Package service holds the domain services of the metrics gate: the
// authorization engine and the outbound capabilities it and the application
// layer depend on.
package service

import (
	"context"

	"github.com/benzaiten/metrics-gate/internal/domain/models"
)

// MetricSink is the fire-and-forget hand-off for accepted metrics. Messages
// are idempotent by content; duplicate delivery is acceptable downstream.
type MetricSink interface {
	Publish(ctx context.Context, m models.Metric) error
	Close() error
}
