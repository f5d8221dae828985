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
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/adapter/bmkg"
	opshttp "github.com/couchcryptid/weather-dashboard-service/internal/adapter/http"
	"github.com/couchcryptid/weather-dashboard-service/internal/adapter/httpclient"
	kafkaadapter "github.com/couchcryptid/weather-dashboard-service/internal/adapter/kafka"
	"github.com/couchcryptid/weather-dashboard-service/internal/adapter/mapbox"
	"github.com/couchcryptid/weather-dashboard-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/weather-dashboard-service/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/weather-dashboard-service/internal/adapter/redis"
	"github.com/couchcryptid/weather-dashboard-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-dashboard-service/internal/adapter/web"
	"github.com/couchcryptid/weather-dashboard-service/internal/config"
	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/couchcryptid/weather-dashboard-service/internal/forecast"
	"github.com/couchcryptid/weather-dashboard-service/internal/observability"
	"github.com/couchcryptid/weather-dashboard-service/internal/pipeline"
	"github.com/couchcryptid/weather-dashboard-service/internal/scheduler"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
)

// schedulerTickTimeout bounds one scheduled sync and forecast.
const schedulerTickTimeout = 5 * time.Minute

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("dashboard stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	checks := []opshttp.Check{{Name: "store", Checker: store}}

	// Record sinks (optional).
	var sinks []pipeline.Sink
	var closers []io.Closer
	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		closers = append(closers, writer)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if cfg.RedisURL != "" {
		pub, err := redisadapter.NewPublisher(ctx, cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, pub)
		closers = append(closers, pub)
		checks = append(checks, opshttp.Check{Name: "redis", Checker: pub})
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}()

	p := pipeline.New(store, pipeline.NewPublisher(sinks, logger, metrics), clock, logger, metrics)

	// Geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		fetcher := httpclient.New("mapbox", cfg.MapboxTimeout, httpclient.DefaultBackoff(1), metrics, logger)
		client := mapbox.NewClient(fetcher, cfg.MapboxToken, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	}
	coords, err := domain.ResolveLocation(ctx, cfg.ArchiveLocation,
		domain.Coordinates{Lat: cfg.ArchiveLatitude, Lon: cfg.ArchiveLongitude}, geocoder, logger)
	if err != nil {
		return err
	}

	backoff := httpclient.DefaultBackoff(cfg.UpstreamMaxRetries)
	archive := openmeteo.NewClient(
		httpclient.New("archive", cfg.UpstreamTimeout, backoff, metrics, logger),
		cfg.ArchiveBaseURL, coords, cfg.ArchiveLookbackDays, clock)
	agency := bmkg.NewClient(
		httpclient.New("agency", cfg.UpstreamTimeout, backoff, metrics, logger),
		cfg.AgencyURL, cfg.AgencyArea, clock, logger)

	forecaster := forecast.New(store, p, forecast.Config{
		MinRecords: cfg.ForecastMinRecords,
		Model:      forecast.ModelConfig{Trees: cfg.ForecastTrees, Seed: cfg.ForecastSeed},
	}, clock, logger, metrics)

	app, err := web.NewApp(web.Deps{
		Store:     store,
		Ingestor:  p,
		Trainer:   forecaster,
		Announcer: p,
		Archive:   archive,
		ArchiveRange: func(start, end time.Time) pipeline.Extractor {
			return archive.Range(start, end)
		},
		Agency:  agency,
		Limit:   cfg.DashboardLimit,
		Clock:   clock,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	var sched *scheduler.Scheduler
	if cfg.SyncInterval > 0 {
		sched = scheduler.New(cfg.SyncInterval, schedulerTickTimeout, p,
			[]pipeline.Extractor{archive, agency}, forecaster, logger)
		// Only a scheduled service is expected to have ingested on its own.
		checks = append(checks, opshttp.Check{Name: "ingestion", Checker: p})
	}

	ops := opshttp.NewServer(cfg.OpsAddr, checks, logger)

	go func() {
		if err := ops.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", "error", err)
		}
	}()
	go func() {
		logger.Info("dashboard listening", "addr", cfg.HTTPAddr, "store", storeKind(cfg))
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Error("dashboard server error", "error", err)
			stop()
		}
	}()
	if sched != nil {
		if err := sched.Start(); err != nil {
			return err
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("dashboard server shutdown error", "error", err)
	}
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.RecordStore, error) {
	if cfg.DatabaseURL != "" {
		return postgres.Open(ctx, cfg.DatabaseURL, logger)
	}
	return sqlite.Open(ctx, cfg.SQLitePath, logger)
}

func storeKind(cfg *config.Config) string {
	if cfg.DatabaseURL != "" {
		return "postgres"
	}
	return "sqlite"
}
