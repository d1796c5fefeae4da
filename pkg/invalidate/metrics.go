package invalidate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readcache_invalidation_dispatch_total",
		Help: "Invalidation pattern purges by outcome",
	}, []string{"outcome"}) // "ok", "timeout", "panic"

	dispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "readcache_invalidation_dispatch_duration_seconds",
		Help:    "Duration of a full invalidation dispatch",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	})
)
