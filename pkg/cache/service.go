package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Service is the public cache surface handed to repositories, handlers and
// the invalidation dispatcher. It adds typed and function-wrapping helpers on
// top of a shared Store.
type Service struct {
	store  *Store
	group  singleflight.Group
	logger zerolog.Logger
}

// NewService creates a service over store.
func NewService(store *Store) *Service {
	if store == nil {
		panic("cache store cannot be nil")
	}
	return &Service{
		store:  store,
		logger: store.logger,
	}
}

// Store returns the underlying store.
func (s *Service) Store() *Store {
	return s.store
}

// Get decodes the cached value at key into dst. Returns false on a miss.
func (s *Service) Get(ctx context.Context, key string, dst any) bool {
	return s.store.Get(ctx, key, dst)
}

// Set caches value at key for ttl. Only an unencodable value returns an error.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return s.store.Set(ctx, key, value, ttl)
}

// Delete removes key from every tier.
func (s *Service) Delete(ctx context.Context, key string) {
	s.store.Delete(ctx, key)
}

// InvalidatePattern removes every key matching pattern (see Store.InvalidatePattern).
func (s *Service) InvalidatePattern(ctx context.Context, pattern string) int {
	return s.store.InvalidatePattern(ctx, pattern)
}

// Clear empties the cache and resets statistics. Administrative use only.
func (s *Service) Clear(ctx context.Context) {
	s.store.Clear(ctx)
}

// Stats returns the current statistics snapshot.
func (s *Service) Stats() Stats {
	return s.store.Stats()
}

// Lookup is the typed form of Service.Get.
func Lookup[T any](ctx context.Context, svc *Service, key string) (T, bool) {
	var v T
	ok := svc.Get(ctx, key, &v)
	return v, ok
}

// Options configures WithCache.
type Options[A any] struct {
	// KeyPrefix is hashed together with the argument when KeyFunc is nil.
	KeyPrefix string

	// KeyFunc derives the key from the argument.
	KeyFunc func(A) string

	// TTL of cached results. Defaults to TierMedium.
	TTL time.Duration

	// Coalesce shares one in-flight call among concurrent misses on the same
	// key. The shared call runs with the first caller's context.
	Coalesce bool
}

func (o Options[A]) key(arg A) (string, error) {
	if o.KeyFunc != nil {
		return o.KeyFunc(arg), nil
	}
	return KeyHash(o.KeyPrefix, arg)
}

// WithCache wraps fn so results are served from the cache when present.
// The wrapped function has the same inputs and outputs as fn: errors are
// returned as-is and never cached, and cache faults never alter the result.
func WithCache[A, R any](svc *Service, fn func(context.Context, A) (R, error), opts Options[A]) func(context.Context, A) (R, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = TierMedium.TTL()
	}

	return func(ctx context.Context, arg A) (R, error) {
		key, err := opts.key(arg)
		if err != nil {
			svc.logger.Warn().Err(err).Str("prefix", opts.KeyPrefix).Msg("Cache key generation failed, calling through")
			return fn(ctx, arg)
		}

		var cached R
		if svc.Get(ctx, key, &cached) {
			return cached, nil
		}

		load := func() (R, error) {
			result, err := fn(ctx, arg)
			if err != nil {
				return result, err
			}
			if err := svc.Set(ctx, key, result, ttl); err != nil {
				svc.logger.Warn().Err(err).Str("key", key).Msg("Result not cached")
			}
			return result, nil
		}

		if !opts.Coalesce {
			return load()
		}

		v, err, _ := svc.group.Do(key, func() (any, error) {
			return load()
		})
		result, _ := v.(R)
		return result, err
	}
}

// Memoize wraps a variadic function, keying results by a hash of its
// arguments under prefix.
func Memoize[R any](svc *Service, prefix string, ttl time.Duration, fn func(context.Context, ...any) (R, error)) func(context.Context, ...any) (R, error) {
	wrapped := WithCache(svc, func(ctx context.Context, args []any) (R, error) {
		return fn(ctx, args...)
	}, Options[[]any]{KeyPrefix: prefix, TTL: ttl})

	return func(ctx context.Context, args ...any) (R, error) {
		return wrapped(ctx, args)
	}
}
