package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Sternrassler/readpath-cache/pkg/cache"
	"github.com/Sternrassler/readpath-cache/pkg/httpcache"
	"github.com/Sternrassler/readpath-cache/pkg/invalidate"
	"github.com/Sternrassler/readpath-cache/pkg/logging"
	"github.com/Sternrassler/readpath-cache/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// principalHeader carries the caller id set by the upstream auth proxy.
const principalHeader = "X-User-ID"

// server wires the repository behind the read cache.
type server struct {
	repo       *repository
	cache      *cache.Service
	dispatcher *invalidate.Dispatcher
	routeTTL   time.Duration
	logger     zerolog.Logger

	caches        []*httpcache.Middleware
	platformStats func(context.Context, struct{}) (PlatformStats, error)
}

func newServer(repo *repository, svc *cache.Service, dispatcher *invalidate.Dispatcher, routeTTL time.Duration, logger zerolog.Logger) *server {
	s := &server{
		repo:       repo,
		cache:      svc,
		dispatcher: dispatcher,
		routeTTL:   routeTTL,
		logger:     logger,
	}

	s.platformStats = cache.WithCache(svc, func(ctx context.Context, _ struct{}) (PlatformStats, error) {
		return repo.PlatformStats(ctx)
	}, cache.Options[struct{}]{
		KeyFunc: func(struct{}) string { return invalidate.PlatformStatsKey },
		TTL:     cache.TierLong.TTL(),
	})

	return s
}

// routeCache returns a caching middleware for one route family.
func (s *server) routeCache(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	mw := httpcache.New(s.cache, httpcache.Config{
		TTL:     s.routeTTL,
		KeyFunc: keyFunc,
		Logger:  s.logger.With().Str("component", "httpcache").Logger(),
	})
	s.caches = append(s.caches, mw)
	return mw.Handler
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.RequestLogger(s.logger))
	r.Use(principal)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/admin/cache", func(r chi.Router) {
		r.Get("/stats", httpcache.StatsHandler(s.cache))
		r.Delete("/", httpcache.ClearHandler(s.cache))
	})

	r.Route("/api", func(r chi.Router) {
		r.With(s.routeCache(func(r *http.Request) string {
			return cache.Key(invalidate.NamespaceTopic, chi.URLParam(r, "id"), "full")
		})).Get("/topics/{id}", s.handleGetTopic)
		r.Put("/topics/{id}", s.handleUpdateTopic)

		r.With(s.routeCache(func(r *http.Request) string {
			return cache.Key(invalidate.NamespaceTopic, chi.URLParam(r, "id"), "opinions", r.URL.Query().Encode())
		})).Get("/topics/{id}/opinions", s.handleListOpinions)

		r.With(s.routeCache(func(r *http.Request) string {
			user := httpcache.PrincipalFromContext(r.Context())
			if user == "" {
				return ""
			}
			return invalidate.VoteKey(chi.URLParam(r, "id"), user)
		})).Get("/opinions/{id}/vote", s.handleGetVote)
		r.Post("/opinions/{id}/vote", s.handleVote)

		r.Get("/stats/platform", s.handlePlatformStats)
	})

	return r
}

// principal moves the caller id from the request header into the context.
func principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(principalHeader); id != "" {
			r = r.WithContext(httpcache.WithPrincipal(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// wait blocks until background cache writes and invalidations finish.
func (s *server) wait() {
	for _, mw := range s.caches {
		mw.Wait()
	}
	s.dispatcher.Wait()
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady is always ready: without Redis the local tier serves alone.
func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	distributed := false
	if b := s.cache.Store().Backend(); b != nil {
		distributed = b.Ping(r.Context()) == nil
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ready",
		"distributed": distributed,
	})
}

func (s *server) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := s.repo.Topic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

type updateTopicRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

func (s *server) handleUpdateTopic(w http.ResponseWriter, r *http.Request) {
	var req updateTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	id := chi.URLParam(r, "id")
	topic, err := s.repo.UpdateTopic(id, req.Title, req.Category)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// The writer reads its own write on the next request.
	s.dispatcher.Topic(r.Context(), id)
	writeJSON(w, http.StatusOK, topic)
}

func (s *server) handleListOpinions(w http.ResponseWriter, r *http.Request) {
	opinions, err := s.repo.Opinions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opinions)
}

func (s *server) handleGetVote(w http.ResponseWriter, r *http.Request) {
	user := httpcache.PrincipalFromContext(r.Context())
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing " + principalHeader})
		return
	}
	vote, err := s.repo.Vote(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vote)
}

type voteRequest struct {
	Value int `json:"value"`
}

func (s *server) handleVote(w http.ResponseWriter, r *http.Request) {
	user := httpcache.PrincipalFromContext(r.Context())
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing " + principalHeader})
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (req.Value != 1 && req.Value != -1) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value must be 1 or -1"})
		return
	}

	id := chi.URLParam(r, "id")
	opinion, err := s.repo.CastVote(id, user, req.Value)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Votes are high volume; purge in the background.
	s.dispatcher.Go(r.Context(), append(
		invalidate.VotePatterns(id, user),
		invalidate.OpinionPatterns(id, opinion.TopicID)...,
	)...)
	writeJSON(w, http.StatusOK, opinion)
}

func (s *server) handlePlatformStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.platformStats(r.Context(), struct{}{})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	s.logger.Error().Err(err).Msg("Request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
