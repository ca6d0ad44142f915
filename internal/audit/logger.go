// Package audit records MFA security events. Recording is best-effort: sink failures are logged
// and never returned to the operation that produced the event.
package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coaching-platform/backend/internal/audit/domain"
	devicedomain "coaching-platform/backend/internal/device/domain"
	"coaching-platform/backend/internal/platform/clock"
)

// Sink receives every recorded event: the audit table, Kafka, OTel logs.
type Sink interface {
	Write(ctx context.Context, e *domain.SecurityEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e *domain.SecurityEvent) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, e *domain.SecurityEvent) error { return f(ctx, e) }

// ClientInfo returns the caller's IP and user agent from the request context.
type ClientInfo func(context.Context) (ip, userAgent string)

// Entry is what an operation knows about an event. IP and Device default to the request's
// client info when empty.
type Entry struct {
	UserID    string
	Type      domain.EventType
	IPAddress string
	Location  string
	Device    string
	Metadata  map[string]string
}

// Recorder is the SecurityEventLog capability used by the MFA orchestrator.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Logger fans events out to its sinks.
type Logger struct {
	sinks      []Sink
	clientInfo ClientInfo
	clock      clock.Clock
	logger     *zap.Logger
}

// NewLogger returns a Logger writing to sinks. clientInfo may be nil; then IP and device are left
// empty unless the entry sets them.
func NewLogger(logger *zap.Logger, c clock.Clock, clientInfo ClientInfo, sinks ...Sink) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = clock.System
	}
	return &Logger{sinks: sinks, clientInfo: clientInfo, clock: c, logger: logger}
}

// Record builds the event and writes it to every sink. Failures are logged, never returned.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	e := &domain.SecurityEvent{
		ID:        uuid.New().String(),
		UserID:    entry.UserID,
		Type:      entry.Type,
		IPAddress: entry.IPAddress,
		Location:  entry.Location,
		Device:    entry.Device,
		Metadata:  entry.Metadata,
		CreatedAt: l.clock.Now(),
	}
	if l.clientInfo != nil && (e.IPAddress == "" || e.Device == "") {
		ip, ua := l.clientInfo(ctx)
		if e.IPAddress == "" {
			e.IPAddress = ip
		}
		if e.Device == "" && ua != "" {
			e.Device = devicedomain.NameFromUserAgent(ua)
		}
	}
	for _, s := range l.sinks {
		if s == nil {
			continue
		}
		if err := l.write(ctx, s, e); err != nil {
			l.logger.Warn("security event sink failed",
				zap.String("event_type", string(e.Type)),
				zap.String("user_id", e.UserID),
				zap.Error(err),
			)
		}
	}
}

func (l *Logger) write(ctx context.Context, s Sink, e *domain.SecurityEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("security event sink panicked", zap.Any("panic", r))
		}
	}()
	return s.Write(ctx, e)
}

// Nop discards events.
type Nop struct{}

// Record does nothing.
func (Nop) Record(context.Context, Entry) {}
