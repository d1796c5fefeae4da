// Package cache provides the dual-tier read cache: a process-local tier with
// TTL expiry and a background sweep, plus an optional Redis tier consulted
// first and bypassed transparently whenever it is unavailable.
//
// The store implements the following behaviour:
//
// - Entries are JSON encoded and live until their TTL elapses
// - Stale entries are never returned (lazy delete on read, periodic sweep)
// - Redis failures are logged, counted and absorbed; callers only see misses
// - Prefix invalidation ("topic:42:*") across both tiers
// - Deterministic, delimiter-safe cache key generation
// - Process-lifetime hit/miss statistics and Prometheus metrics
//
// # Basic Usage
//
//	// Optional distributed tier, resolved before serving requests
//	backend, err := cache.ConnectRedis(ctx, cache.RedisConfig{URL: "redis://localhost:6379/0"}, logger)
//	if err != nil {
//		logger.Warn().Err(err).Msg("Redis unavailable, running local-only")
//	}
//
//	store := cache.NewStore(backend, cache.DefaultConfig())
//	store.Start(ctx)
//	defer store.Close()
//
//	svc := cache.NewService(store)
//
//	key := cache.Key("topic", topicID, "counts")
//	var counts TopicCounts
//	if !svc.Get(ctx, key, &counts) {
//		counts = loadCounts(topicID)
//		_ = svc.Set(ctx, key, counts, cache.TierShort.TTL())
//	}
//
// # Wrapping Read Functions
//
//	getTopic := cache.WithCache(svc, repo.GetTopic, cache.Options[string]{
//		KeyFunc: func(id string) string { return cache.Key("topic", id, "full") },
//		TTL:     cache.TierMedium.TTL(),
//	})
//
// # Invalidation
//
//	svc.InvalidatePattern(ctx, "topic:42:*") // prefix
//	svc.InvalidatePattern(ctx, "stats:platform") // exact key
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - readcache_hits_total{tier="redis|local"} - Cache hits
//   - readcache_misses_total - Cache misses
//   - readcache_sets_total - Successful local writes
//   - readcache_invalidations_total - Keys removed by invalidation
//   - readcache_errors_total{operation} - Absorbed cache faults
//   - readcache_local_entries - Live local entries after the last sweep
//
// # Consistency
//
// The cache is an accelerator, not a source of truth. A reader may observe
// data up to one TTL old unless the write path invalidates explicitly, and
// concurrent misses on the same key are not de-duplicated unless
// Options.Coalesce is set.
package cache
