package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/davidleathers/fraud-scoring-service/internal/api/rest"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/config"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/storage"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/telemetry"
	"github.com/davidleathers/fraud-scoring-service/internal/metrics"
	"github.com/davidleathers/fraud-scoring-service/internal/service/features"
	"github.com/davidleathers/fraud-scoring-service/internal/service/model"
	"github.com/davidleathers/fraud-scoring-service/internal/service/scoring"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fraud-scoring: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	zapLogger, err := telemetry.NewZapLogger(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		return err
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.InitializeOpenTelemetry(ctx, &cfg.Telemetry, cfg.Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown telemetry", "error", err)
		}
	}()

	store, err := storage.New(ctx, cfg, zapLogger.Named("storage"))
	if err != nil {
		return fmt.Errorf("opening %s artifact store: %w", cfg.Model.Store, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			zapLogger.Warn("closing artifact store", zap.Error(err))
		}
	}()

	otelMetrics, err := metrics.NewRegistry("fraud-scoring")
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	merchants := features.NewMerchantBucketer(cfg.Model.MerchantHashSeed)
	registry := model.NewRegistry(store,
		model.NewTrainer(model.TrainingConfigFrom(cfg.Model)),
		model.WithLogger(logger),
		model.WithObserver(otelMetrics),
		model.WithMerchantBucketer(merchants),
	)
	artifacts, err := registry.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	logger.Info("model ready",
		"generation", artifacts.Generation,
		"kind", artifacts.Classifier.Kind(),
		"source", artifacts.Source,
		"store", store.Backend())

	history, err := features.NewHistoryProvider(cfg.Model.History)
	if err != nil {
		return err
	}
	extractor := features.NewExtractor(history, features.WithMerchantBucketer(merchants))

	svc := scoring.NewService(registry, extractor,
		scoring.WithLogger(logger),
		scoring.WithMetrics(otelMetrics))

	buildInfo.WithLabelValues(cfg.Version, cfg.Environment).Set(1)

	server, err := rest.NewServer(cfg, rest.Dependencies{
		Scoring:        svc,
		Models:         registry,
		Store:          store,
		Metrics:        promMetrics{},
		MetricsHandler: metricsHandler(),
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run(ctx)
}
