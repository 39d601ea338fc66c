package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/hazard-alert-feed/internal/adapter/httpadapter"
	"github.com/couchcryptid/hazard-alert-feed/internal/adapter/httpfetch"
	kafkaadapter "github.com/couchcryptid/hazard-alert-feed/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-alert-feed/internal/adapter/sqlite"
	"github.com/couchcryptid/hazard-alert-feed/internal/config"
	"github.com/couchcryptid/hazard-alert-feed/internal/observability"
	"github.com/couchcryptid/hazard-alert-feed/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := httpfetch.NewClient(cfg.FetchTimeout, cfg.FetchRatePerHost, cfg.UserAgent, metrics, logger)
	documents := httpfetch.NewCachedFetcher(client, cfg.DocumentCacheSize, metrics)

	sources, err := pipeline.BuildSources(cfg, client, documents, logger)
	if err != nil {
		logger.Error("failed to build sources", "error", err)
		os.Exit(1)
	}

	// Checkpoints survive restarts only when CHECKPOINT_DB is set.
	var checkpoints pipeline.CheckpointStore = pipeline.NewMemoryCheckpoints()
	var closers []io.Closer
	if cfg.CheckpointDB != "" {
		store, err := sqlite.Open(cfg.CheckpointDB)
		if err != nil {
			logger.Error("failed to open checkpoint db", "path", cfg.CheckpointDB, "error", err)
			os.Exit(1)
		}
		checkpoints = store
		closers = append(closers, store)
		logger.Info("checkpoints persisted", "path", cfg.CheckpointDB)
	} else {
		logger.Info("checkpoints kept in memory")
	}

	writer := kafkaadapter.NewWriter(cfg, logger)
	closers = append(closers, writer)

	p := pipeline.New(sources, writer, checkpoints, logger, metrics, pipeline.OptionsFromConfig(cfg))

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start poll loop.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}

	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
