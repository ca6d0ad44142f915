package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "coaching:mfa:rl:"

// The count is only incremented while below the limit, so a rejected attempt never pushes the
// stored count past it. The key's TTL is the window; Redis expiry starts the next window.
var hitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current >= limit then
  return {0, current}
end

current = redis.call("INCR", key)
if current == 1 then
  redis.call("PEXPIRE", key, window_ms)
end
return {1, current}
`)

// RedisCounter keeps counters in Redis so every server instance shares one budget.
type RedisCounter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCounter returns a counter using client. An empty prefix uses the default.
func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCounter{client: client, prefix: prefix}
}

// Hit ignores now: the window is tracked by the key's TTL on the Redis server clock.
func (c *RedisCounter) Hit(ctx context.Context, key Key, _ time.Time, limit int, length time.Duration) (int, bool, error) {
	windowMS := int64(length / time.Millisecond)
	if windowMS <= 0 {
		return 0, false, errInvalidWindow
	}
	res, err := hitScript.Run(ctx, c.client, []string{c.prefix + key.String()}, limit, windowMS).Result()
	if err != nil {
		return 0, false, fmt.Errorf("ratelimit: redis hit: %w", err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, false, fmt.Errorf("ratelimit: unexpected redis response %T", res)
	}
	allowed, ok1 := vals[0].(int64)
	count, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return 0, false, fmt.Errorf("ratelimit: unexpected redis response %v", vals)
	}
	return int(count), allowed == 1, nil
}

func (c *RedisCounter) Reset(ctx context.Context, key Key) error {
	if err := c.client.Del(ctx, c.prefix+key.String()).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis reset: %w", err)
	}
	return nil
}
