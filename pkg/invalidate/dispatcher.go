package invalidate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Invalidator purges cache keys matching a pattern and returns how many were
// removed. *cache.Service and *cache.Store satisfy it.
type Invalidator interface {
	InvalidatePattern(ctx context.Context, pattern string) int
}

// Config holds dispatcher configuration.
type Config struct {
	// MaxConcurrency bounds parallel purges within one dispatch.
	MaxConcurrency int

	// Timeout bounds each pattern purge.
	Timeout time.Duration

	Logger zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		Timeout:        2 * time.Second,
		Logger:         log.With().Str("component", "invalidate").Logger(),
	}
}

// Dispatcher executes invalidation patterns concurrently. Each pattern runs
// in isolation: a failing or panicking purge never stops the others, and no
// dispatch ever returns an error.
type Dispatcher struct {
	target Invalidator
	config Config
	logger zerolog.Logger

	pending sync.WaitGroup
}

// NewDispatcher creates a dispatcher purging through target.
func NewDispatcher(target Invalidator, cfg Config) *Dispatcher {
	if target == nil {
		panic("invalidation target cannot be nil")
	}
	defaults := DefaultConfig()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaults.MaxConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	return &Dispatcher{
		target: target,
		config: cfg,
		logger: cfg.Logger,
	}
}

// Dispatch purges every pattern and waits for all of them. It returns the
// total number of keys removed.
func (d *Dispatcher) Dispatch(ctx context.Context, patterns ...string) int {
	start := time.Now()

	var total atomic.Int64
	var g errgroup.Group
	g.SetLimit(d.config.MaxConcurrency)

	for _, pattern := range patterns {
		pattern := pattern
		g.Go(func() error {
			total.Add(int64(d.purge(ctx, pattern)))
			return nil
		})
	}
	_ = g.Wait()

	removed := int(total.Load())
	dispatchDuration.Observe(time.Since(start).Seconds())
	d.logger.Debug().
		Strs("patterns", patterns).
		Int("removed", removed).
		Dur("duration", time.Since(start)).
		Msg("Invalidation dispatched")

	return removed
}

func (d *Dispatcher) purge(ctx context.Context, pattern string) (removed int) {
	defer func() {
		if r := recover(); r != nil {
			dispatchTotal.WithLabelValues("panic").Inc()
			d.logger.Error().
				Interface("panic", r).
				Str("pattern", pattern).
				Msg("Invalidation target panicked")
			removed = 0
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	removed = d.target.InvalidatePattern(ctx, pattern)
	if ctx.Err() != nil {
		dispatchTotal.WithLabelValues("timeout").Inc()
		d.logger.Warn().Str("pattern", pattern).Msg("Invalidation exceeded timeout")
		return removed
	}
	dispatchTotal.WithLabelValues("ok").Inc()
	return removed
}

// Go dispatches patterns in the background. The purge outlives ctx's
// cancellation, so it is safe to call right before a request returns.
// Callers needing read-your-write consistency use Dispatch instead.
func (d *Dispatcher) Go(ctx context.Context, patterns ...string) {
	ctx = context.WithoutCancel(ctx)

	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		d.Dispatch(ctx, patterns...)
	}()
}

// Wait blocks until every background dispatch has finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Topic purges caches derived from a topic.
func (d *Dispatcher) Topic(ctx context.Context, topicID string) int {
	return d.Dispatch(ctx, TopicPatterns(topicID)...)
}

// Opinion purges caches derived from an opinion; topicID may be empty.
func (d *Dispatcher) Opinion(ctx context.Context, opinionID, topicID string) int {
	return d.Dispatch(ctx, OpinionPatterns(opinionID, topicID)...)
}

// User purges caches derived from a user.
func (d *Dispatcher) User(ctx context.Context, userID string) int {
	return d.Dispatch(ctx, UserPatterns(userID)...)
}

// Vote purges caches affected by a user's vote on an opinion.
func (d *Dispatcher) Vote(ctx context.Context, opinionID, userID string) int {
	return d.Dispatch(ctx, VotePatterns(opinionID, userID)...)
}
