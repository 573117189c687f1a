package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/adrian-cg/earthquakes/internal/adapter/geonames"
	httpadapter "github.com/adrian-cg/earthquakes/internal/adapter/http"
	kafkaadapter "github.com/adrian-cg/earthquakes/internal/adapter/kafka"
	"github.com/adrian-cg/earthquakes/internal/adapter/memview"
	"github.com/adrian-cg/earthquakes/internal/config"
	"github.com/adrian-cg/earthquakes/internal/coordinator"
	"github.com/adrian-cg/earthquakes/internal/domain"
	"github.com/adrian-cg/earthquakes/internal/observability"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var source domain.EarthquakeSource = geonames.NewClient(geonames.Options{
		BaseURL:   cfg.GeoNamesBaseURL,
		Username:  cfg.GeoNamesUsername,
		Timeout:   cfg.GeoNamesTimeout,
		RateLimit: cfg.GeoNamesRateLimit,
		Burst:     cfg.GeoNamesBurst,
	}, metrics, logger)

	// Response cache (feature-flagged via CACHE_SIZE; 0 disables it).
	if cfg.CacheSize > 0 {
		source = geonames.NewCachedSource(source, cfg.CacheSize, cfg.CacheTTL, metrics)
		logger.Info("earthquake cache enabled", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	} else {
		logger.Info("earthquake cache disabled")
	}

	// Display publishing (feature-flagged via KAFKA_ENABLED).
	var sink coordinator.DisplaySink
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sink = writer
		logger.Info("display publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaDisplayTopic)
	}

	center := domain.Point{Lat: cfg.MapCenterLat, Lng: cfg.MapCenterLng}
	view := memview.NewView(center, cfg.MapZoom)

	c := coordinator.New(source, view.Map, view.Tables, view.Notices, sink, logger, metrics, coordinator.Options{
		InitialCenter:  center,
		InitialZoom:    cfg.MapZoom,
		TopTenMaxRows:  cfg.TopTenMaxRows,
		TopTenSize:     cfg.TopTenSize,
		TopTenOrder:    cfg.TopTenOrder,
		RevealStep:     cfg.MarkerRevealStep,
		FetchTimeout:   2 * cfg.GeoNamesTimeout,
		TopTenRetry:    cfg.TopTenRetry,
		TopTenRetryMax: cfg.TopTenRetryMax,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, cfg.CORSAllowedOrigins, c, view, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return c.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	runErr := g.Wait()

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	if runErr != nil {
		logger.Error("service error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
