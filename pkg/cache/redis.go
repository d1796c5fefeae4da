package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	// DefaultNamespace prefixes every key written to Redis.
	DefaultNamespace = "readcache:"

	// DefaultOpTimeout bounds every Redis call.
	DefaultOpTimeout = 250 * time.Millisecond

	// scanCount is the COUNT hint for SCAN during prefix deletion.
	scanCount = 256
)

// RedisConfig configures the Redis tier.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection string. Takes precedence over Host.
	URL string

	// Host, Port, Password and DB are used when URL is empty.
	Host     string
	Port     int
	Password string
	DB       int

	// Namespace prefixes every key so Flush never touches foreign keys.
	Namespace string

	// OpTimeout bounds each Redis call.
	OpTimeout time.Duration

	// ConnectAttempts is the number of startup pings before giving up.
	ConnectAttempts int

	// ConnectBackoff is the initial delay between startup pings.
	ConnectBackoff time.Duration

	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32

	// BreakerCooldown is how long the breaker stays open before probing again.
	BreakerCooldown time.Duration
}

// DefaultRedisConfig returns a configuration with safe defaults and no address.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Port:            6379,
		Namespace:       DefaultNamespace,
		OpTimeout:       DefaultOpTimeout,
		ConnectAttempts: 3,
		ConnectBackoff:  200 * time.Millisecond,
		BreakerFailures: 5,
		BreakerCooldown: 10 * time.Second,
	}
}

// Enabled reports whether an address is configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// Options converts the configuration into go-redis client options.
func (c RedisConfig) Options() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}
	if c.Host == "" {
		return nil, fmt.Errorf("redis host or url is required")
	}

	port := c.Port
	if port == 0 {
		port = 6379
	}
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.Host, port),
		Password: c.Password,
		DB:       c.DB,
	}, nil
}

// RedisBackend is the distributed tier backed by Redis. Every call is bounded
// by OpTimeout and guarded by a circuit breaker, so an unreachable Redis fails
// fast instead of stalling request handling.
type RedisBackend struct {
	client    *redis.Client
	namespace string
	timeout   time.Duration
	breaker   *gobreaker.CircuitBreaker
	logger    zerolog.Logger
}

// NewRedisBackend wraps an existing Redis client.
func NewRedisBackend(client *redis.Client, cfg RedisConfig, logger zerolog.Logger) *RedisBackend {
	if client == nil {
		panic("redis client cannot be nil")
	}

	defaults := DefaultRedisConfig()
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaults.OpTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaults.BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaults.BreakerCooldown
	}

	b := &RedisBackend{
		client:    client,
		namespace: cfg.Namespace,
		timeout:   cfg.OpTimeout,
		logger:    logger,
	}

	failures := cfg.BreakerFailures
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Cache backend circuit breaker state changed")
		},
	})

	return b
}

// do runs fn through the breaker with a per-call timeout.
func (b *RedisBackend) do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		return nil, fn(callCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return err
}

func (b *RedisBackend) key(key string) string {
	return b.namespace + key
}

// Get retrieves the payload stored at key.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		data, err = b.client.Get(ctx, b.key(key)).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set stores value at key with the given TTL.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.do(ctx, func(ctx context.Context) error {
		return b.client.Set(ctx, b.key(key), value, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key.
func (b *RedisBackend) Delete(ctx context.Context, key string) (bool, error) {
	var n int64
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		n, err = b.client.Unlink(ctx, b.key(key)).Result()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("redis unlink: %w", err)
	}
	return n > 0, nil
}

// DeletePrefix removes every key starting with prefix using SCAN + UNLINK.
// Each round trip gets its own timeout; the whole walk is bounded by ctx.
func (b *RedisBackend) DeletePrefix(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(b.key(prefix)) + "*"

	var removed []string
	var cursor uint64
	for {
		var keys []string
		err := b.do(ctx, func(ctx context.Context) error {
			var err error
			keys, cursor, err = b.client.Scan(ctx, cursor, match, scanCount).Result()
			return err
		})
		if err != nil {
			return removed, fmt.Errorf("redis scan: %w", err)
		}

		if len(keys) > 0 {
			err := b.do(ctx, func(ctx context.Context) error {
				return b.client.Unlink(ctx, keys...).Err()
			})
			if err != nil {
				return removed, fmt.Errorf("redis unlink: %w", err)
			}
			for _, k := range keys {
				removed = append(removed, strings.TrimPrefix(k, b.namespace))
			}
		}

		if cursor == 0 {
			return removed, nil
		}
	}
}

// Flush removes every key under the namespace.
func (b *RedisBackend) Flush(ctx context.Context) error {
	_, err := b.DeletePrefix(ctx, "")
	return err
}

// Ping checks connectivity, bypassing the breaker so readiness probes see
// the real state of Redis.
func (b *RedisBackend) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// BreakerState returns the circuit breaker state (closed, half-open, open).
func (b *RedisBackend) BreakerState() string {
	return b.breaker.State().String()
}

// Close closes the Redis client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// escapeGlob escapes Redis MATCH metacharacters so a prefix is matched literally.
func escapeGlob(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

var _ Backend = (*RedisBackend)(nil)
