package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/engagement-tracker/internal/config"
	"github.com/ignite/engagement-tracker/internal/observability"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
	"github.com/ignite/engagement-tracker/internal/service/engagement"
	"github.com/ignite/engagement-tracker/internal/storage"
	"github.com/ignite/engagement-tracker/internal/tracking"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	logger.Init("engagement-tracking", logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.ShouldRedact())

	ctx := context.Background()

	var ing tracking.Ingestor
	switch cfg.Tracking.Mode {
	case config.TrackingAsync:
		awsCfg, err := storage.LoadAWSConfig(ctx, storage.AWSOptions{Region: cfg.Tracking.Region})
		if err != nil {
			logger.Error("aws config", "error", err)
			os.Exit(1)
		}
		ing = tracking.NewAsyncIngestor(tracking.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.Tracking.QueueURL))
		logger.Info("tracking hits published to SQS", "queue_url", cfg.Tracking.QueueURL)
	default:
		stores, err := storage.New(ctx, cfg)
		if err != nil {
			logger.Error("failed to initialize storage", "error", err)
			os.Exit(1)
		}
		defer stores.Close()
		ing = engagement.NewService(engagement.Stores{
			Events:     stores.Events,
			Campaigns:  stores.Campaigns,
			Recipients: stores.Recipients,
		})
	}

	reg := prometheus.NewRegistry()
	observability.Register(reg)

	router := tracking.NewHandler(ing, cfg.Tracking.LocationHeader).Routes()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("tracking service listening", "addr", srv.Addr, "mode", cfg.Tracking.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down tracking service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
