// Package main wires together the presell engine service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/presellkit/presell-engine/internal/acquire"
	"github.com/presellkit/presell-engine/internal/api"
	"github.com/presellkit/presell-engine/internal/capture"
	"github.com/presellkit/presell-engine/internal/clock/system"
	"github.com/presellkit/presell-engine/internal/config"
	"github.com/presellkit/presell-engine/internal/deliver"
	"github.com/presellkit/presell-engine/internal/dispatcher"
	"github.com/presellkit/presell-engine/internal/id/uuid"
	"github.com/presellkit/presell-engine/internal/logging"
	"github.com/presellkit/presell-engine/internal/metrics"
	"github.com/presellkit/presell-engine/internal/orchestrator"
	"github.com/presellkit/presell-engine/internal/overlay"
	"github.com/presellkit/presell-engine/internal/presell"
	pubsubPublisher "github.com/presellkit/presell-engine/internal/publisher/pubsub"
	queueMemory "github.com/presellkit/presell-engine/internal/queue/memory"
	"github.com/presellkit/presell-engine/internal/rewrite"
	gcsStorage "github.com/presellkit/presell-engine/internal/storage/gcs"
	localStorage "github.com/presellkit/presell-engine/internal/storage/local"
	memoryStorage "github.com/presellkit/presell-engine/internal/storage/memory"
	postgresStorage "github.com/presellkit/presell-engine/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	campaignStore, closeCampaignStore, err := buildCampaignStore(ctx, cfg)
	if err != nil {
		logger.Fatal("campaign store init failed", zap.Error(err))
	}
	defer closeCampaignStore()

	screenshotStore, screenshotReader, err := buildScreenshotStore(ctx, cfg)
	if err != nil {
		logger.Fatal("screenshot store init failed", zap.Error(err))
	}

	publisher, closePublisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer closePublisher()

	queue := queueMemory.NewQueue(cfg.Processing.QueueDepth)
	clock := system.New()
	idGen := uuid.New()

	acquirer := acquire.New(acquire.Config{
		UserAgent: cfg.Acquire.UserAgent,
		Timeout:   cfg.AcquireTimeout(),
	})
	rewriter := rewrite.New()

	capturer, err := capture.New(capture.Config{
		UserAgent:      cfg.Acquire.UserAgent,
		ViewportHeight: cfg.Capture.ViewportHeight,
		NavTimeout:     cfg.NavTimeout(),
		Settle:         cfg.Settle(),
		JPEGQuality:    cfg.Capture.JPEGQuality,
		RunTimeout:     cfg.RunTimeout(),
	}, screenshotStore, logger.Named("capture"))
	if err != nil {
		logger.Fatal("capturer init failed", zap.Error(err))
	}
	defer capturer.Close()

	orch := orchestrator.New(
		queue,
		campaignStore,
		acquirer,
		rewriter,
		capturer,
		publisher,
		clock,
		orchestrator.Config{EventTopic: cfg.Processing.EventTopic},
		logger.Named("orchestrator"),
	)
	dispatch := dispatcher.New(orch, cfg.Processing.Concurrency, queue, logger.Named("dispatcher"))

	resolver := deliver.New(
		campaignStore,
		overlay.New(),
		clock,
		deliver.Config{PlaceholderReload: cfg.Delivery.PlaceholderReloadSeconds},
		logger.Named("deliver"),
	)

	apiServer := api.NewServer(
		campaignStore,
		orch,
		resolver,
		screenshotReader,
		idGen,
		clock,
		cfg,
		logger.Named("api"),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	logger.Info("shutdown complete")
}

func buildCampaignStore(ctx context.Context, cfg config.Config) (presell.CampaignStore, func(), error) {
	switch cfg.Storage.Provider {
	case "memory":
		return memoryStorage.NewCampaignStore(), func() {}, nil
	case "postgres":
		store, err := postgresStorage.NewCampaignStore(ctx, postgresStorage.CampaignStoreConfig{
			DSN: cfg.Storage.DSN,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func buildScreenshotStore(ctx context.Context, cfg config.Config) (presell.ScreenshotStore, api.ScreenshotReader, error) {
	switch cfg.Screenshots.Provider {
	case "local":
		store, err := localStorage.New(localStorage.Config{BaseDir: cfg.Screenshots.BaseDir})
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client: %w", err)
		}
		store, err := gcsStorage.New(client, gcsStorage.Config{Bucket: cfg.Screenshots.GCSBucket})
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown screenshots provider %q", cfg.Screenshots.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (presell.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" || cfg.Processing.EventTopic == "" {
		logger.Info("event publishing disabled")
		return nil, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	pub, err := pubsubPublisher.New(client)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() {
		pub.Close()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}, nil
}
