package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		client.Close()
		s.Close()
	})
	return s, client
}

func TestRedisCounter_Window(t *testing.T) {
	s, client := newTestRedis(t)
	c := NewRedisCounter(client, "test:")
	ctx := context.Background()
	key := Key{UserID: "u1", Action: ActionTOTP}

	for i := 1; i <= 3; i++ {
		count, ok, err := c.Hit(ctx, key, time.Now(), 3, time.Minute)
		if err != nil || !ok || count != i {
			t.Fatalf("hit %d = %d, %v, %v", i, count, ok, err)
		}
	}
	count, ok, err := c.Hit(ctx, key, time.Now(), 3, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || count != 3 {
		t.Fatalf("hit 4 = %d allowed=%v, want 3 denied", count, ok)
	}
	if got, _ := s.Get("test:u1:totp"); got != "3" {
		t.Errorf("stored count = %q, want it capped at 3", got)
	}
	if s.TTL("test:u1:totp") <= 0 {
		t.Error("counter key should expire with the window")
	}

	s.FastForward(61 * time.Second)
	count, ok, err = c.Hit(ctx, key, time.Now(), 3, time.Minute)
	if err != nil || !ok || count != 1 {
		t.Errorf("first hit of new window = %d, %v, %v", count, ok, err)
	}
}

func TestRedisCounter_Reset(t *testing.T) {
	s, client := newTestRedis(t)
	c := NewRedisCounter(client, "")
	ctx := context.Background()
	key := Key{UserID: "u1", Action: ActionBackupCode}

	c.Hit(ctx, key, time.Now(), 1, time.Minute)
	if err := c.Reset(ctx, key); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.Exists(defaultRedisPrefix + "u1:backup_code") {
		t.Error("key should be deleted")
	}
	if _, ok, _ := c.Hit(ctx, key, time.Now(), 1, time.Minute); !ok {
		t.Error("want allowed after reset")
	}
}

func TestRedisCounter_UnavailableFailsClosed(t *testing.T) {
	s, client := newTestRedis(t)
	s.Close()

	l := NewLimiter(NewRedisCounter(client, ""), 5, time.Minute, nil, nil)
	if l.Check(context.Background(), "u1", ActionTOTP).Allowed {
		t.Error("unreachable redis must deny")
	}
}
