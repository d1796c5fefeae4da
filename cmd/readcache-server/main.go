// Command readcache-server runs a demo topic/opinion API behind the
// dual-tier read cache.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/readpath-cache/internal/config"
	"github.com/Sternrassler/readpath-cache/pkg/cache"
	"github.com/Sternrassler/readpath-cache/pkg/invalidate"
	"github.com/Sternrassler/readpath-cache/pkg/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Setup(cfg.Logging())
	logger := logging.NewLogger("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A nil interface, not a typed nil, keeps the store local-only.
	var backend cache.Backend
	var redisBackend *cache.RedisBackend
	if cfg.RedisEnabled() {
		redisBackend, err = cache.ConnectRedis(ctx, cfg.Redis(), logging.NewLogger("cache"))
		if err != nil {
			logger.Warn().Err(err).Msg("Distributed cache tier unavailable, running local-only")
		} else {
			backend = redisBackend
		}
	} else {
		logger.Info().Msg("No distributed cache tier configured, running local-only")
	}

	store := cache.NewStore(backend, cache.Config{
		SweepInterval: cfg.CacheSweepInterval,
		Logger:        logging.NewLogger("cache"),
	})
	store.Start(ctx)

	svc := cache.NewService(store)
	dispatcher := invalidate.NewDispatcher(svc, invalidate.Config{
		Logger: logging.NewLogger("invalidate"),
	})

	srv := newServer(newRepository(0), svc, dispatcher, cfg.CacheRouteTTL, logger)
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Bool("distributed", backend != nil).
			Msg("Starting read cache server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}
	srv.wait()
	store.Close()
	if redisBackend != nil {
		if err := redisBackend.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close distributed cache tier")
		}
	}

	logger.Info().Msg("Server stopped")
	return nil
}
