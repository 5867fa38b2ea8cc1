// Package cache wraps the Redis client used for the query-result cache,
// OIDC state mirroring, and the settings cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is a thin typed wrapper over *redis.Client; every cache key this
// service writes goes through it, under the same namespacing and
// (de)serialization discipline. Raw is the one way to the underlying client.
type Client struct {
	rdb *redis.Client
}

// NewClient dials redisURL, accepting either a bare "host:port" address or
// a full redis:// URL.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	redisURL = strings.TrimSpace(redisURL)
	if redisURL == "" {
		return nil, fmt.Errorf("cache: redis url is required")
	}

	var opts *redis.Options
	var err error
	if strings.Contains(redisURL, "://") {
		opts, err = redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("cache: parse redis url: %w", err)
		}
	} else {
		opts = &redis.Options{Addr: redisURL}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Raw exposes the underlying client for components (live-tail pub/sub, the
// job queues, the rate limiter) that need primitives this wrapper doesn't
// expose.
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

// SetJSON marshals v and stores it under key with the given TTL (0 means no
// expiry), used by the query cache and the settings cache.
func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// GetJSON unmarshals the value stored at key into dest, returning
// (false, nil) on a cache miss rather than an error.
func (c *Client) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, fmt.Errorf("cache: unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Del removes key, used to invalidate the settings cache on write.
func (c *Client) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// SetNX sets key only if absent, with ttl, returning whether it claimed the
// key.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

// GetDel atomically reads and removes key, enforcing the single-use
// property of OIDC state tokens.
func (c *Client) GetDel(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: getdel %s: %w", key, err)
	}
	return v, true, nil
}

// OIDCStateKey namespaces a state token's mirrored cache entry.
func OIDCStateKey(state string) string {
	return "oidc:state:" + state
}

// QueryKey namespaces a log-query cache entry.
func QueryKey(hash string) string {
	return "query:" + hash
}

// SettingKey namespaces a single system-setting cache entry.
func SettingKey(key string) string {
	return "setting:" + key
}
