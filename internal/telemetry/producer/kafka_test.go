package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"coaching-platform/backend/internal/audit/domain"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	closed   int
	deadline bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, f.deadline = ctx.Deadline()
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed++
	return nil
}

func TestNewKafkaProducer_Disabled(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Error("no brokers should disable the producer")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Error("empty topic should disable the producer")
	}
	var p *KafkaProducer
	if err := p.Write(context.Background(), &domain.SecurityEvent{}); err != nil {
		t.Errorf("nil producer Write: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close: %v", err)
	}
}

func TestKafkaProducer_Write(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "mfa-security-events"}
	created := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	ev := &domain.SecurityEvent{
		ID: "e1", UserID: "u1", Type: domain.EventBackupCodeUsed,
		Metadata: map[string]string{"remaining": "7"}, CreatedAt: created,
	}

	if err := p.Write(context.Background(), ev); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "u1" {
		t.Errorf("key = %q, want user id", msg.Key)
	}
	if !w.deadline {
		t.Error("write should carry a deadline")
	}
	var got domain.SecurityEvent
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Type != domain.EventBackupCodeUsed || got.Metadata["remaining"] != "7" || !got.CreatedAt.Equal(created) {
		t.Errorf("payload = %+v", got)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "backup_code_used" {
		t.Errorf("headers = %v", msg.Headers)
	}
}

func TestKafkaProducer_WriteError(t *testing.T) {
	p := &KafkaProducer{writer: &fakeWriter{err: errors.New("leader not available")}}
	if err := p.Write(context.Background(), &domain.SecurityEvent{UserID: "u1"}); err == nil {
		t.Error("expected error")
	}
}

func TestKafkaProducer_CloseTwice(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if w.closed != 1 {
		t.Errorf("underlying writer closed %d times, want 1", w.closed)
	}
}
