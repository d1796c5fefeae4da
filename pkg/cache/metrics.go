package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tier labels for metrics.
const (
	layerRedis = "redis"
	layerLocal = "local"
)

var (
	// CacheHits tracks cache hits by tier (redis, local)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readcache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"tier"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readcache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheSets tracks successful writes
	CacheSets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readcache_sets_total",
			Help: "Total number of cache writes",
		},
	)

	// CacheInvalidations tracks keys removed by pattern invalidation
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readcache_invalidations_total",
			Help: "Total number of cache keys removed by invalidation",
		},
	)

	// CacheErrors tracks absorbed cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readcache_errors_total",
			Help: "Total number of absorbed cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "invalidate", "clear", "decode"
	)

	// LocalEntries tracks live entries in the local tier after each sweep
	LocalEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "readcache_local_entries",
			Help: "Live entries in the process-local cache tier",
		},
	)

	// BackendConnectAttempts tracks startup connection attempts by outcome
	BackendConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readcache_backend_connect_attempts_total",
			Help: "Distributed cache tier connection attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)
)
