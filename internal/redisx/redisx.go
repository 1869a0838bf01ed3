// Package redisx wraps the go-redis client with the handful of operations
// the services use: detail caching, the daily run lock and event fan-out.
package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by Lock when another holder owns the key.
var ErrLockHeld = errors.New("redis lock held")

type Client struct{ Rdb *redis.Client }

// New parses redisURL and verifies connectivity.
func New(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	c := &Client{Rdb: redis.NewClient(opts)}
	if err := c.Ping(ctx); err != nil {
		_ = c.Rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.Rdb.Ping(ctx).Err()
}

func (c *Client) Close() error { return c.Rdb.Close() }

// Get returns "" with a nil error on a miss.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	v, err := c.Rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (c *Client) Set(ctx context.Context, key string, val string, ttl time.Duration) error {
	return c.Rdb.Set(ctx, key, val, ttl).Err()
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.Rdb.Publish(ctx, channel, payload).Err()
}

// Lock takes key with SETNX for ttl, storing owner as the value. The
// returned release deletes the key only while owner still holds it.
func (c *Client) Lock(ctx context.Context, key, owner string, ttl time.Duration) (func(context.Context) error, error) {
	ok, err := c.Rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, c.Rdb, []string{key}, owner).Err()
	}, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)
