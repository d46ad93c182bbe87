package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/ecogrid-engine/internal/adapter/api"
	"github.com/couchcryptid/ecogrid-engine/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/ecogrid-engine/internal/adapter/kafka"
	"github.com/couchcryptid/ecogrid-engine/internal/cart"
	"github.com/couchcryptid/ecogrid-engine/internal/config"
	"github.com/couchcryptid/ecogrid-engine/internal/domain"
	"github.com/couchcryptid/ecogrid-engine/internal/game"
	"github.com/couchcryptid/ecogrid-engine/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.RequireUsername()
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	buildings, err := loadBuildings(cfg.CatalogPath)
	if err != nil {
		logger.Error("failed to load building catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.APIBaseURL, cfg.APISessionID, cfg.APITimeout, logger, metrics)
	details := api.NewCachedDetailSource(client, cfg.DetailCacheSize, metrics)
	ledger := cart.NewLedger(client, logger, metrics)

	// Build events are feature-flagged via BUILD_EVENTS_ENABLED / KAFKA_BROKERS.
	var events game.EventPublisher
	var writer *kafkaadapter.Writer
	if cfg.BuildEventsEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, metrics)
		events = writer
		logger.Info("build events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaBuildTopic)
	} else {
		logger.Info("build events disabled")
	}

	session := game.NewSession(game.Options{
		Username:       cfg.Username,
		StartingBudget: cfg.StartingBudget,
		ScalingFactor:  cfg.ScalingFactor,
		Locations:      client,
		Enricher:       domain.NewEnricher(details, domain.NewRandomScorer(cfg.ScorerSeed), logger),
		Ledger:         ledger,
		Simulation:     client,
		Events:         events,
		Buildings:      buildings,
		Normalizer:     domain.NewNormalizer(cfg.MissingPolicy),
		Logger:         logger,
		Metrics:        metrics,
	})
	refresher := game.NewRefresher(session, 0, 0, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, session, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Load the catalog, retrying while the backend is unreachable.
	go func() {
		if err := refresher.Run(ctx); err != nil {
			logger.Error("catalog refresh error", "error", err)
		}
		session.RefreshCart(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func loadBuildings(path string) (*domain.BuildingCatalog, error) {
	if path == "" {
		return domain.DefaultBuildingCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open building catalog: %w", err)
	}
	defer f.Close()
	return domain.LoadBuildingCatalog(f)
}
