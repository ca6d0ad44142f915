package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count int
	start time.Time
}

// MemoryCounter keeps counters in process memory. Expired windows are swept once per window
// length so idle users do not accumulate.
type MemoryCounter struct {
	mu          sync.Mutex
	entries     map[Key]*window
	lastCleanup time.Time
}

// NewMemoryCounter returns an empty counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{entries: make(map[Key]*window)}
}

func (c *MemoryCounter) Hit(_ context.Context, key Key, now time.Time, limit int, length time.Duration) (int, bool, error) {
	if length <= 0 {
		return 0, false, errInvalidWindow
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastCleanup) >= length {
		for k, w := range c.entries {
			if now.After(w.start.Add(length)) {
				delete(c.entries, k)
			}
		}
		c.lastCleanup = now
	}

	w, ok := c.entries[key]
	if !ok || now.After(w.start.Add(length)) {
		c.entries[key] = &window{count: 1, start: now}
		return 1, true, nil
	}
	if w.count >= limit {
		return w.count, false, nil
	}
	w.count++
	return w.count, true, nil
}

func (c *MemoryCounter) Reset(_ context.Context, key Key) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}
