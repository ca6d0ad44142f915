package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"coaching-platform/backend/internal/audit/domain"
	"coaching-platform/backend/internal/audit/repository"
	"coaching-platform/backend/internal/platform/clock"
)

func TestLogger_Record_Success(t *testing.T) {
	repo := repository.NewMemoryRepository()
	clk := clock.NewManual(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	info := func(context.Context) (string, string) {
		return "192.168.1.1", "Mozilla/5.0 (Windows NT 10.0) Firefox/121.0"
	}
	l := NewLogger(nil, clk, info, SinkFunc(repo.Create))

	l.Record(context.Background(), Entry{
		UserID:   "user-1",
		Type:     domain.EventMFAEnabled,
		Metadata: map[string]string{"backup_codes": "8"},
	})

	events, _ := repo.ListByUser(context.Background(), "user-1", 0)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" {
		t.Error("event id should be set")
	}
	if e.Type != domain.EventMFAEnabled {
		t.Errorf("type = %q", e.Type)
	}
	if e.IPAddress != "192.168.1.1" {
		t.Errorf("ip = %q", e.IPAddress)
	}
	if e.Device != "Firefox on Windows" {
		t.Errorf("device = %q", e.Device)
	}
	if !e.CreatedAt.Equal(clk.Now()) {
		t.Errorf("created_at = %v", e.CreatedAt)
	}
	if e.Metadata["backup_codes"] != "8" {
		t.Errorf("metadata = %v", e.Metadata)
	}
}

func TestLogger_Record_ExplicitFieldsWin(t *testing.T) {
	repo := repository.NewMemoryRepository()
	info := func(context.Context) (string, string) { return "1.1.1.1", "curl/8" }
	l := NewLogger(nil, nil, info, SinkFunc(repo.Create))

	l.Record(context.Background(), Entry{UserID: "u1", Type: domain.EventTrustedDeviceAdded, IPAddress: "2.2.2.2", Device: "Work laptop"})

	events, _ := repo.ListByUser(context.Background(), "u1", 0)
	if events[0].IPAddress != "2.2.2.2" || events[0].Device != "Work laptop" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestLogger_Record_SinkErrorIsSwallowed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var delivered int
	failing := SinkFunc(func(context.Context, *domain.SecurityEvent) error { return errors.New("db down") })
	counting := SinkFunc(func(context.Context, *domain.SecurityEvent) error { delivered++; return nil })
	l := NewLogger(zap.New(core), nil, nil, failing, counting)

	l.Record(context.Background(), Entry{UserID: "u1", Type: domain.EventMFADisabled})

	if delivered != 1 {
		t.Errorf("later sinks must still receive the event, delivered = %d", delivered)
	}
	entries := logs.FilterMessage("security event sink failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["event_type"]; got != "mfa_disabled" {
		t.Errorf("logged event_type = %v", got)
	}
}

func TestLogger_Record_SinkPanicIsContained(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	panicking := SinkFunc(func(context.Context, *domain.SecurityEvent) error { panic("boom") })
	l := NewLogger(zap.New(core), nil, nil, panicking, nil)

	l.Record(context.Background(), Entry{UserID: "u1", Type: domain.EventBackupCodeUsed})

	if logs.FilterMessage("security event sink panicked").Len() != 1 {
		t.Error("panic should be logged")
	}
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.Record(context.Background(), Entry{UserID: "u1"})
}
