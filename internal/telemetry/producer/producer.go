// Package producer publishes security events to Kafka for the log-shipping worker.
package producer

import (
	"context"

	"coaching-platform/backend/internal/audit/domain"
)

// Producer publishes security events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Write publishes a single event. Implementations may block briefly; wrap in telemetry.AsyncSink
	// to keep it off the request path.
	Write(ctx context.Context, e *domain.SecurityEvent) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
