package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultSweepInterval is how often expired local entries are purged.
const DefaultSweepInterval = 60 * time.Second

// Config holds store configuration.
type Config struct {
	// SweepInterval is the period of the background expiry sweep.
	SweepInterval time.Duration

	// Logger receives absorbed cache faults at warn level.
	Logger zerolog.Logger

	// Now returns the current time. Overridable for tests.
	Now func() time.Time
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		SweepInterval: DefaultSweepInterval,
		Logger:        log.With().Str("component", "cache").Logger(),
		Now:           time.Now,
	}
}

// Store is the dual-tier cache: an always-present local map with TTL expiry
// and an optional distributed Backend consulted first. Backend faults never
// reach callers; every operation degrades to local-only behaviour.
//
// A Store is created once at startup and shared; it is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry

	backend Backend
	config  Config
	logger  zerolog.Logger

	hits          atomic.Uint64
	misses        atomic.Uint64
	sets          atomic.Uint64
	invalidations atomic.Uint64

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewStore creates a store. backend may be nil for a local-only store.
func NewStore(backend Backend, cfg Config) *Store {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	// ConnectRedis returns a nil *RedisBackend on failure
	if rb, ok := backend.(*RedisBackend); ok && rb == nil {
		backend = nil
	}

	return &Store{
		entries: make(map[string]entry),
		backend: backend,
		config:  cfg,
		logger:  cfg.Logger,
	}
}

// HasBackend reports whether a distributed tier is configured.
func (s *Store) HasBackend() bool {
	return s.backend != nil
}

// Backend returns the distributed tier, or nil.
func (s *Store) Backend() Backend {
	return s.backend
}

// Get looks key up and decodes the value into dst, which must be a non-nil
// pointer. It returns false on a miss. dst is left untouched on a miss.
func (s *Store) Get(ctx context.Context, key string, dst any) bool {
	if s.backend != nil && s.getRemote(ctx, key, dst) {
		return true
	}
	return s.getLocal(key, dst)
}

func (s *Store) getRemote(ctx context.Context, key string, dst any) bool {
	data, err := s.backend.Get(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, ErrCacheMiss):
		return false
	default:
		CacheErrors.WithLabelValues("get").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache backend get failed, falling back to local tier")
		return false
	}

	if err := decode(data, dst); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding corrupt cache payload from backend")
		if _, err := s.backend.Delete(ctx, key); err != nil {
			CacheErrors.WithLabelValues("delete").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("Cache backend delete failed")
		}
		return false
	}

	s.recordHit(layerRedis)
	s.logger.Debug().Str("key", key).Str("tier", layerRedis).Msg("Cache hit")
	return true
}

func (s *Store) getLocal(key string, dst any) bool {
	now := s.config.Now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		s.recordMiss(key)
		return false
	}

	if e.isExpired(now) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.isExpired(now) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		s.recordMiss(key)
		return false
	}

	if err := decode(e.value, dst); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding corrupt local cache entry")
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		s.recordMiss(key)
		return false
	}

	s.recordHit(layerLocal)
	s.logger.Debug().
		Str("key", key).
		Str("tier", layerLocal).
		Dur("ttl", e.ttl(now)).
		Msg("Cache hit")
	return true
}

// Set JSON-encodes value and stores it in both tiers for ttl.
// An unencodable value returns ErrUnserializable and nothing is stored.
// Backend failures are logged and swallowed. ttl <= 0 stores nothing.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("%w: %v", ErrUnserializable, err)
	}
	s.set(ctx, key, data, ttl)
	return nil
}

// SetRaw stores an already-encoded JSON payload.
func (s *Store) SetRaw(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if !json.Valid(data) {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("%w: payload is not valid JSON", ErrUnserializable)
	}
	s.set(ctx, key, data, ttl)
	return nil
}

func (s *Store) set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	s.mu.Lock()
	s.entries[key] = entry{value: data, expiresAt: s.config.Now().Add(ttl)}
	s.mu.Unlock()

	s.sets.Add(1)
	CacheSets.Inc()

	if s.backend != nil {
		if err := s.backend.Set(ctx, key, data, ttl); err != nil {
			CacheErrors.WithLabelValues("set").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("Cache backend set failed, kept in local tier")
		}
	}

	s.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("Cached value")
}

// Delete removes key from both tiers.
func (s *Store) Delete(ctx context.Context, key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	if s.backend != nil {
		if _, err := s.backend.Delete(ctx, key); err != nil {
			CacheErrors.WithLabelValues("delete").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("Cache backend delete failed")
		}
	}
}

// InvalidatePattern removes matching keys from both tiers and returns the
// number of distinct keys removed.
//
// A trailing Wildcard makes the pattern a plain prefix ("topic:42:*" removes
// every key starting with "topic:42:"). Without it the pattern names one key.
func (s *Store) InvalidatePattern(ctx context.Context, pattern string) int {
	prefix, isPrefix := strings.CutSuffix(pattern, Wildcard)
	removed := make(map[string]struct{})

	s.mu.Lock()
	for key := range s.entries {
		if (isPrefix && strings.HasPrefix(key, prefix)) || (!isPrefix && key == pattern) {
			delete(s.entries, key)
			removed[key] = struct{}{}
		}
	}
	s.mu.Unlock()

	if s.backend != nil {
		if isPrefix {
			keys, err := s.backend.DeletePrefix(ctx, prefix)
			for _, k := range keys {
				removed[k] = struct{}{}
			}
			if err != nil {
				CacheErrors.WithLabelValues("invalidate").Inc()
				s.logger.Warn().Err(err).Str("pattern", pattern).Msg("Cache backend invalidation failed")
			}
		} else {
			existed, err := s.backend.Delete(ctx, pattern)
			if existed {
				removed[pattern] = struct{}{}
			}
			if err != nil {
				CacheErrors.WithLabelValues("invalidate").Inc()
				s.logger.Warn().Err(err).Str("pattern", pattern).Msg("Cache backend invalidation failed")
			}
		}
	}

	n := len(removed)
	s.invalidations.Add(uint64(n))
	CacheInvalidations.Add(float64(n))

	s.logger.Debug().Str("pattern", pattern).Int("removed", n).Msg("Invalidated cache pattern")
	return n
}

// Clear empties both tiers and resets the statistics.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()

	if s.backend != nil {
		if err := s.backend.Flush(ctx); err != nil {
			CacheErrors.WithLabelValues("clear").Inc()
			s.logger.Warn().Err(err).Msg("Cache backend flush failed")
		}
	}

	s.hits.Store(0)
	s.misses.Store(0)
	s.sets.Store(0)
	s.invalidations.Store(0)
	LocalEntries.Set(0)

	s.logger.Info().Msg("Cache cleared")
}

// Len returns the number of live entries in the local tier.
func (s *Store) Len() int {
	now := s.config.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if !e.isExpired(now) {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of the counters. It never mutates state.
func (s *Store) Stats() Stats {
	return newStats(
		s.hits.Load(),
		s.misses.Load(),
		s.sets.Load(),
		s.invalidations.Load(),
		s.Len(),
	)
}

// Sweep deletes every local entry whose expiry has passed and returns how
// many were removed.
func (s *Store) Sweep() int {
	now := s.config.Now()

	s.mu.Lock()
	removed := 0
	for key, e := range s.entries {
		if e.isExpired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	remaining := len(s.entries)
	s.mu.Unlock()

	LocalEntries.Set(float64(remaining))
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Int("remaining", remaining).Msg("Swept expired cache entries")
	}
	return removed
}

// Start launches the background sweep. It stops when ctx is cancelled or
// Close is called. Calling Start more than once has no effect.
func (s *Store) Start(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.sweepLoop(ctx, s.done)
}

func (s *Store) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("Cache sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close stops the background sweep and waits for it to exit. The backend is
// owned by the caller and is not closed.
func (s *Store) Close() {
	s.lifecycle.Lock()
	cancel, done := s.cancel, s.done
	s.lifecycle.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Store) recordHit(tier string) {
	s.hits.Add(1)
	CacheHits.WithLabelValues(tier).Inc()
}

func (s *Store) recordMiss(key string) {
	s.misses.Add(1)
	CacheMisses.Inc()
	s.logger.Debug().Str("key", key).Msg("Cache miss")
}

// decode unmarshals data into a fresh value of dst's element type and
// assigns it only on success, so a failed decode never leaves dst half-filled.
func decode(data []byte, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: destination must be a non-nil pointer", ErrInvalidEntry)
	}

	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}
