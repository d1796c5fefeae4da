package httpcache

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Sternrassler/readpath-cache/pkg/cache"
)

// StatsSource reports cache statistics.
type StatsSource interface {
	Stats() cache.Stats
}

// Clearer empties a cache.
type Clearer interface {
	Clear(ctx context.Context)
}

// StatsHandler serves the cache statistics as JSON.
func StatsHandler(src StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(src.Stats())
	}
}

// ClearHandler empties both cache tiers and responds 204 No Content.
func ClearHandler(c Clearer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.Clear(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}
