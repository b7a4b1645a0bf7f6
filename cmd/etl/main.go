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

	"github.com/couchcryptid/station-climate-etl/internal/acquire"
	"github.com/couchcryptid/station-climate-etl/internal/adapter/download"
	"github.com/couchcryptid/station-climate-etl/internal/adapter/filesink"
	httpadapter "github.com/couchcryptid/station-climate-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/station-climate-etl/internal/adapter/kafka"
	"github.com/couchcryptid/station-climate-etl/internal/config"
	"github.com/couchcryptid/station-climate-etl/internal/ecad"
	"github.com/couchcryptid/station-climate-etl/internal/observability"
	"github.com/couchcryptid/station-climate-etl/internal/pipeline"
	"github.com/couchcryptid/station-climate-etl/internal/scheduler"
	"github.com/couchcryptid/station-climate-etl/internal/store"
)

// catalogStore is what the acquisition manager, the resolver and the
// pipeline need from persistence.
type catalogStore interface {
	pipeline.Store
	acquire.Catalog
	store.FactorLookup
}

type sink interface {
	pipeline.Sink
	io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := ecad.ParseWindowPolicy(cfg.WindowPolicy)
	if err != nil {
		logger.Error("invalid window policy", "error", err)
		os.Exit(1)
	}

	catalog, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	factors := store.NewCachedFactors(catalog, cfg.ElementCacheSize, metrics)
	resolver := ecad.NewResolver(factors, logger)

	client := download.NewClient(cfg.DownloadTimeout, metrics, logger)
	manager := acquire.NewManager(catalog, client, acquire.Options{
		CurrentDir:      cfg.CurrentDataDir,
		TmpDir:          cfg.TmpDataDir,
		DownloadEnabled: cfg.DownloadEnabled,
	}, logger)

	var out sink
	if cfg.KafkaEnabled() {
		out = kafkaadapter.NewWriter(cfg, logger)
		logger.Info("publishing station series to kafka", "topic", cfg.KafkaSinkTopic)
	} else {
		out = filesink.New(cfg.ArtifactDir, logger)
		logger.Info("writing station series to files", "dir", cfg.ArtifactDir)
	}

	p := pipeline.New(catalog, manager, resolver, out, pipeline.Options{
		Policy:     policy,
		LegendLang: cfg.LegendLang,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, nil, logger)
	sched := scheduler.New(cfg.RunInterval, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		stop()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := out.Close(); err != nil {
		logger.Error("sink close error", "error", err)
	}
	closeStore()

	logger.Info("shutdown complete")
}

// openStore connects to Postgres when DATABASE_URL is set and otherwise
// seeds an in-memory store from SEED_FILE.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (catalogStore, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using postgres store")
		return pg, pg.Close, nil
	}

	mem, err := store.LoadSeed(cfg.SeedFile)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using in-memory store", "seed_file", cfg.SeedFile)
	return mem, func() {}, nil
}
