// Package metrics exposes the Prometheus registry for the read cache.
// Collectors are defined in the packages that update them (cache, httpcache,
// invalidate) and registered there through promauto.
//
// This package serves them and documents the catalogue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every read cache collector uses.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered collector in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - readcache_hits_total{tier="redis|local"} (Counter): Cache hits by tier
//   - readcache_misses_total (Counter): Cache misses
//   - readcache_sets_total (Counter): Cache writes
//   - readcache_invalidations_total (Counter): Keys removed by invalidation
//   - readcache_errors_total{operation} (Counter): Absorbed cache errors
//   - readcache_local_entries (Gauge): Live local entries after each sweep
//   - readcache_backend_connect_attempts_total{outcome} (Counter): Startup pings
//
// HTTP Metrics (pkg/httpcache):
//   - readcache_http_responses_total{result="hit|miss|not_modified|bypass"} (Counter)
//
// Invalidation Metrics (pkg/invalidate):
//   - readcache_invalidation_dispatch_total{outcome="ok|timeout|panic"} (Counter)
//   - readcache_invalidation_dispatch_duration_seconds (Histogram)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(readcache_hits_total[5m])) /
//   (sum(rate(readcache_hits_total[5m])) + sum(rate(readcache_misses_total[5m])))
//
//   # Share of hits served by the local tier (Redis degraded)
//   rate(readcache_hits_total{tier="local"}[5m]) / sum(rate(readcache_hits_total[5m]))
//
//   # Absorbed backend errors
//   sum by (operation) (rate(readcache_errors_total[5m]))
//
//   # 304 Response Rate
//   rate(readcache_http_responses_total{result="not_modified"}[5m]) /
//   sum(rate(readcache_http_responses_total[5m]))
//
//   # P95 invalidation latency
//   histogram_quantile(0.95, rate(readcache_invalidation_dispatch_duration_seconds_bucket[5m]))
