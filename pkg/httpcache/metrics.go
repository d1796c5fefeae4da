package httpcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for HTTPResponses.
const (
	resultHit         = "hit"
	resultMiss        = "miss"
	resultNotModified = "not_modified"
	resultBypass      = "bypass"
)

// HTTPResponses tracks responses served through the middleware by result
var HTTPResponses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "readcache_http_responses_total",
		Help: "Responses served through the HTTP cache middleware",
	},
	[]string{"result"}, // "hit", "miss", "not_modified", "bypass"
)
