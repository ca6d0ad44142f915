package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"coaching-platform/backend/internal/audit"
	"coaching-platform/backend/internal/audit/domain"
)

// InstrumentationName is the scope name for MFA logs, spans and metrics.
const InstrumentationName = "coaching.mfa"

// recordEmitter is the part of otellog.Logger the sink needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventSink returns an audit.Sink that sends security events as OTel log records via provider.
// If provider is nil, returns a no-op sink.
func NewEventSink(provider *sdklog.LoggerProvider) audit.Sink {
	if provider == nil {
		return noopSink{}
	}
	return NewEventSinkWithLogger(provider.Logger(InstrumentationName))
}

// NewEventSinkWithLogger returns a sink emitting through logger.
func NewEventSinkWithLogger(logger recordEmitter) audit.Sink {
	return &eventSink{logger: logger}
}

type noopSink struct{}

func (noopSink) Write(context.Context, *domain.SecurityEvent) error { return nil }

type eventSink struct {
	logger recordEmitter
}

// Write converts the event to a log record: metadata as a JSON body, identity fields as attributes.
func (s *eventSink) Write(ctx context.Context, e *domain.SecurityEvent) error {
	if e == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(e.CreatedAt)
	if rec.Timestamp().IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetEventName(string(e.Type))
	if len(e.Metadata) > 0 {
		body, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		rec.SetBody(otellog.BytesValue(body))
	}
	attrs := []struct{ key, val string }{
		{"event_id", e.ID},
		{"user_id", e.UserID},
		{"event_type", string(e.Type)},
		{"client.address", e.IPAddress},
		{"location", e.Location},
		{"device", e.Device},
	}
	for _, a := range attrs {
		if a.val != "" {
			rec.AddAttributes(otellog.String(a.key, a.val))
		}
	}
	s.logger.Emit(ctx, rec)
	return nil
}
