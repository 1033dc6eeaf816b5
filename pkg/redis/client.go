package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/chatshop/pkg/config"
)

const (
	keyNamespace      = "cs"
	idempotencyPrefix = "idempotency"
	lockPrefix        = "lock"
)

var errNotInitialized = errors.New("redis client not initialized")

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client covers the two jobs Redis has here: remembering webhook update ids
// and holding leader locks for cluster-wide cron jobs. Session state never
// touches Redis.
type Client struct {
	raw *redis.Client
}

// IdempotencyStore exposes the operations used by idempotency guards.
type IdempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// New opens a pooled Redis client and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{raw: raw}, nil
}

// optionsFromConfig prefers the URL. Pool and timeout settings fill whatever
// the URL left unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	setInt(&opts.PoolSize, cfg.PoolSize)
	setInt(&opts.MinIdleConns, cfg.MinIdleConns)
	setDuration(&opts.DialTimeout, cfg.DialTimeout)
	setDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	setDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func setInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c == nil || c.raw == nil {
		return false, errNotInitialized
	}
	return c.raw.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.raw == nil {
		return errNotInitialized
	}
	return c.raw.Del(ctx, keys...).Err()
}

// CompareAndDelete deletes key if its value is still value, atomically.
func (c *Client) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	if c == nil || c.raw == nil {
		return false, errNotInitialized
	}
	n, err := compareAndDelete.Run(ctx, c.raw, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.raw == nil {
		return errNotInitialized
	}
	return c.raw.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// IdempotencyKey returns a namespaced key for idempotency storage.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

// LockKey returns a namespaced key for a cron leader lock.
func (c *Client) LockKey(name string) string {
	return buildKey(lockPrefix, name)
}

func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}
