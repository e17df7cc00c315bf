package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	dialTimeout = 5 * time.Second
	keyPrefix   = "courier"
)

// Client is the shared Redis connection behind the sliding-window limiter and
// the /health backend check.
type Client struct {
	rdb    *goredis.Client
	window *goredis.Script
}

// Dial connects to redisURL and returns once the server has answered a PING.
func Dial(ctx context.Context, redisURL string) (*Client, error) {
	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = keyPrefix
	}

	rdb := goredis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis at %s unreachable: %w", opt.Addr, err)
	}

	return &Client{
		rdb:    rdb,
		window: goredis.NewScript(slidingWindowScript),
	}, nil
}

// Ping is the health check.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// key namespaces every key this service writes, e.g. courier:rate:a@x.com.
func key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}
