// Package telemetry ships security events off the request path: asynchronously to Kafka and
// OpenTelemetry logs (see the producer and otel subpackages), and from Kafka to Loki in the worker.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"coaching-platform/backend/internal/audit"
	"coaching-platform/backend/internal/audit/domain"
)

// emitTimeout is the max time allowed for a single async write.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration bounds how long shutdown waits for in-flight async writes. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// AsyncSink runs each Write of the wrapped sink in its own goroutine so the caller is not blocked.
// The goroutine uses a detached context with emitTimeout, so request cancellation does not abort an
// in-flight write. Errors are logged.
type AsyncSink struct {
	sink   audit.Sink
	name   string
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewAsyncSink wraps sink. name labels log lines (e.g. "kafka").
func NewAsyncSink(name string, sink audit.Sink, logger *zap.Logger) *AsyncSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncSink{sink: sink, name: name, logger: logger}
}

// Write schedules the write and returns nil immediately.
func (a *AsyncSink) Write(_ context.Context, e *domain.SecurityEvent) error {
	if a == nil || a.sink == nil || e == nil {
		return nil
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := a.sink.Write(ctx, e); err != nil {
			a.logger.Warn("async security event write failed",
				zap.String("sink", a.name),
				zap.String("event_type", string(e.Type)),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Drain waits for in-flight writes or until ctx is done. Reports whether all writes finished.
func (a *AsyncSink) Drain(ctx context.Context) bool {
	if a == nil {
		return true
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
