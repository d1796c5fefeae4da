package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrBackendNotConfigured is returned by ConnectRedis when no address is set.
var ErrBackendNotConfigured = errors.New("cache backend not configured")

// maxConnectBackoff caps the delay between startup pings.
const maxConnectBackoff = 5 * time.Second

// ConnectRedis resolves the distributed tier synchronously at startup.
// It pings Redis up to cfg.ConnectAttempts times with exponential backoff and
// jitter, and returns a ready backend or an error. Callers that get an error
// run local-only; there is no background reconnect flag to race with.
func ConnectRedis(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisBackend, error) {
	if !cfg.Enabled() {
		return nil, ErrBackendNotConfigured
	}

	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	defaults := DefaultRedisConfig()
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = defaults.ConnectAttempts
	}
	if cfg.ConnectBackoff <= 0 {
		cfg.ConnectBackoff = defaults.ConnectBackoff
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaults.OpTimeout
	}
	opts.DialTimeout = cfg.OpTimeout
	opts.ReadTimeout = cfg.OpTimeout
	opts.WriteTimeout = cfg.OpTimeout

	client := redis.NewClient(opts)
	backend := NewRedisBackend(client, cfg, logger)

	err = retryWithBackoff(ctx, cfg.ConnectAttempts, cfg.ConnectBackoff, logger, func() error {
		return backend.Ping(ctx)
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info().
		Str("addr", opts.Addr).
		Int("db", opts.DB).
		Str("namespace", cfg.Namespace).
		Msg("Connected to distributed cache tier")

	return backend, nil
}

// retryWithBackoff executes fn until it succeeds or attempts are exhausted.
// It respects context cancellation and adds ±20% jitter to each delay.
func retryWithBackoff(ctx context.Context, attempts int, backoff time.Duration, logger zerolog.Logger, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			BackendConnectAttempts.WithLabelValues("success").Inc()
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Cache backend reachable after retry")
			}
			return nil
		}

		lastErr = err
		BackendConnectAttempts.WithLabelValues("failure").Inc()

		if attempt >= attempts {
			break
		}

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))

		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Cache backend ping failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("connect cancelled: %w", ctx.Err())
		case <-time.After(jitter):
		}

		backoff *= 2
		if backoff > maxConnectBackoff {
			backoff = maxConnectBackoff
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrBackendUnavailable, attempts, lastErr)
}
