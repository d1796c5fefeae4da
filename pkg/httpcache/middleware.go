// Package httpcache caches JSON GET responses through a cache.Service and
// answers conditional requests with 304 Not Modified.
package httpcache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/readpath-cache/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Response headers set by the middleware.
const (
	HeaderCache = "X-Cache"
	cacheHit    = "HIT"
	cacheMiss   = "MISS"
)

// Cacher is the cache surface the middleware needs. *cache.Service and
// *cache.Store satisfy it.
type Cacher interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Record is the cached form of a response. Data holds the body exactly as
// the handler wrote it, so ETag(Data) == ETag on every hit.
type Record struct {
	Data []byte `json:"data"`
	ETag string `json:"etag"`
}

// Config holds middleware configuration.
type Config struct {
	// TTL of stored responses. Defaults to cache.TierRoute.
	TTL time.Duration

	// VaryBy names request headers (falling back to query parameters of the
	// same name) whose values become part of the default key.
	VaryBy []string

	// KeyFunc overrides the default key. Returning "" bypasses the cache.
	KeyFunc func(r *http.Request) string

	// Skip bypasses the cache when it returns true.
	Skip func(r *http.Request) bool

	// Principal identifies the caller. Defaults to PrincipalFromContext.
	Principal func(r *http.Request) string

	Logger zerolog.Logger
}

// DefaultConfig returns the default middleware configuration.
func DefaultConfig() Config {
	return Config{
		TTL:    cache.TierRoute.TTL(),
		Logger: log.With().Str("component", "httpcache").Logger(),
	}
}

// Middleware serves cached JSON responses with strong ETags.
// Cache faults never reach the client: lookups degrade to a miss and
// failed writes are logged.
type Middleware struct {
	cache  Cacher
	config Config
	logger zerolog.Logger

	pending sync.WaitGroup
}

// New creates the middleware.
func New(c Cacher, cfg Config) *Middleware {
	if c == nil {
		panic("cache cannot be nil")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = cache.TierRoute.TTL()
	}
	if cfg.Principal == nil {
		cfg.Principal = func(r *http.Request) string {
			return PrincipalFromContext(r.Context())
		}
	}

	return &Middleware{
		cache:  c,
		config: cfg,
		logger: cfg.Logger,
	}
}

// Handler wraps next. The signature fits chi's Use.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.cacheable(r) {
			HTTPResponses.WithLabelValues(resultBypass).Inc()
			next.ServeHTTP(w, r)
			return
		}

		key := m.key(r)
		if key == "" {
			HTTPResponses.WithLabelValues(resultBypass).Inc()
			next.ServeHTTP(w, r)
			return
		}

		var rec Record
		if m.cache.Get(r.Context(), key, &rec) && rec.ETag != "" {
			m.serveHit(w, r, key, rec)
			return
		}

		if r.Method == http.MethodHead {
			HTTPResponses.WithLabelValues(resultBypass).Inc()
			next.ServeHTTP(w, r)
			return
		}

		m.serveMiss(w, r, next, key)
	})
}

func (m *Middleware) cacheable(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	if m.config.Skip != nil && m.config.Skip(r) {
		return false
	}
	return true
}

func (m *Middleware) key(r *http.Request) string {
	if m.config.KeyFunc != nil {
		return m.config.KeyFunc(r)
	}
	return DefaultKey(r, m.config.VaryBy, m.config.Principal(r))
}

// DefaultKey builds the route key for r:
// route:<escaped path>[:<sorted query>][:name=value...][:user:<principal>]
//
// Every request-derived part is percent-encoded first, so distinct paths,
// values and principals never collapse under cache.Key's delimiter escape.
func DefaultKey(r *http.Request, varyBy []string, principal string) string {
	parts := []any{"route", strings.ReplaceAll(r.URL.EscapedPath(), ":", "%3A")}

	query := r.URL.Query()
	if encoded := query.Encode(); encoded != "" {
		parts = append(parts, encoded)
	}
	for _, name := range varyBy {
		value := r.Header.Get(name)
		if value == "" {
			value = query.Get(name)
		}
		parts = append(parts, strings.ToLower(name)+"="+url.QueryEscape(value))
	}
	if principal != "" {
		parts = append(parts, "user", url.QueryEscape(principal))
	}

	return cache.Key(parts...)
}

func (m *Middleware) cacheControl() string {
	return "public, max-age=" + strconv.Itoa(int(m.config.TTL.Seconds()))
}

func (m *Middleware) serveHit(w http.ResponseWriter, r *http.Request, key string, rec Record) {
	h := w.Header()
	h.Set("ETag", rec.ETag)
	h.Set("Cache-Control", m.cacheControl())
	h.Set(HeaderCache, cacheHit)

	if MatchesETag(r.Header.Get("If-None-Match"), rec.ETag) {
		HTTPResponses.WithLabelValues(resultNotModified).Inc()
		m.logger.Debug().Str("key", key).Msg("Cache hit, not modified")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	HTTPResponses.WithLabelValues(resultHit).Inc()
	m.logger.Debug().Str("key", key).Msg("Cache hit")

	h.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(rec.Data); err != nil {
		m.logger.Debug().Err(err).Str("key", key).Msg("Failed to write cached response")
	}
}

func (m *Middleware) serveMiss(w http.ResponseWriter, r *http.Request, next http.Handler, key string) {
	rw := newResponseWriter()
	next.ServeHTTP(rw, r)

	body := rw.body.Bytes()
	if rw.status != http.StatusOK || !storable(rw.header, body) {
		HTTPResponses.WithLabelValues(resultBypass).Inc()
		if err := rw.send(w, rw.status, nil); err != nil {
			m.logger.Debug().Err(err).Str("key", key).Msg("Failed to write response")
		}
		return
	}

	etag := ETag(body)
	extra := http.Header{
		"Etag":          {etag},
		"Cache-Control": {m.cacheControl()},
		HeaderCache:     {cacheMiss},
	}

	m.store(r.Context(), key, Record{
		Data: append([]byte(nil), body...),
		ETag: etag,
	})

	status := http.StatusOK
	if MatchesETag(r.Header.Get("If-None-Match"), etag) {
		status = http.StatusNotModified
		HTTPResponses.WithLabelValues(resultNotModified).Inc()
	} else {
		HTTPResponses.WithLabelValues(resultMiss).Inc()
	}
	m.logger.Debug().Str("key", key).Str("etag", etag).Msg("Cache miss, response stored")

	if err := rw.send(w, status, extra); err != nil {
		m.logger.Debug().Err(err).Str("key", key).Msg("Failed to write response")
	}
}

// storable reports whether a 200 response may be cached: a non-empty JSON
// body the handler did not mark no-store.
func storable(h http.Header, body []byte) bool {
	if strings.Contains(h.Get("Cache-Control"), "no-store") {
		return false
	}
	return len(body) > 0 && json.Valid(body)
}

// store writes rec in the background; the write outlives the request.
func (m *Middleware) store(ctx context.Context, key string, rec Record) {
	ctx = context.WithoutCancel(ctx)

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		if err := m.cache.Set(ctx, key, rec, m.config.TTL); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("Failed to store response")
		}
	}()
}

// Wait blocks until every pending cache write has finished.
func (m *Middleware) Wait() {
	m.pending.Wait()
}
