package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const RateLimitWindow = 60 * time.Second

// Trims the window, counts it and records the send atomically.
// KEYS[1] = window key
// ARGV = now_ms, window_ms, limit, member
// Returns {count, allowed}.
const slidingWindowScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, now - window)
local count = redis.call('ZCARD', KEYS[1])
if count >= limit then
	return {count, 0}
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return {count + 1, 1}
`

func rateKey(identityKey string) string {
	return key("rate", identityKey)
}

// CheckRateLimit records one send for identityKey in a sliding one-minute
// window and reports the count and whether the send fits under limit. A
// denied send is not recorded.
func (c *Client) CheckRateLimit(ctx context.Context, identityKey string, limit int) (int, bool, error) {
	res, err := c.window.Run(ctx, c.rdb,
		[]string{rateKey(identityKey)},
		time.Now().UnixMilli(),
		RateLimitWindow.Milliseconds(),
		limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("check rate limit: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("check rate limit: unexpected reply %v", res)
	}

	return int(res[0]), res[1] == 1, nil
}

// Limiter adapts the sliding window to the relay's rate limiter interface.
type Limiter struct {
	client    *Client
	perMinute int
}

func NewLimiter(client *Client, perMinute int) *Limiter {
	return &Limiter{client: client, perMinute: perMinute}
}

func (l *Limiter) Allow(ctx context.Context, identityKey string) (bool, error) {
	if l.perMinute <= 0 {
		return true, nil
	}
	_, allowed, err := l.client.CheckRateLimit(ctx, identityKey, l.perMinute)
	return allowed, err
}
