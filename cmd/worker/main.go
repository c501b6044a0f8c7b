package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/engagement-tracker/internal/config"
	"github.com/ignite/engagement-tracker/internal/observability"
	"github.com/ignite/engagement-tracker/internal/pkg/distlock"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
	"github.com/ignite/engagement-tracker/internal/service/analytics"
	"github.com/ignite/engagement-tracker/internal/service/engagement"
	"github.com/ignite/engagement-tracker/internal/storage"
	"github.com/ignite/engagement-tracker/internal/tracking"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// The worker drains the tracking queue into the event ledger and keeps
// analytics snapshots fresh.
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
	logger.Init("engagement-worker", logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.ShouldRedact())
	observability.Register(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		if redisClient, err = distlock.OpenRedis(ctx, cfg.Redis.URL); err != nil {
			logger.Warn("redis unavailable, falling back for the refresh lock", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	var consumer *tracking.Consumer
	if cfg.Tracking.QueueURL != "" {
		awsCfg, err := storage.LoadAWSConfig(ctx, storage.AWSOptions{Region: cfg.Tracking.Region})
		if err != nil {
			logger.Error("aws config", "error", err)
			os.Exit(1)
		}
		ingest := engagement.NewService(engagement.Stores{
			Events:     stores.Events,
			Campaigns:  stores.Campaigns,
			Recipients: stores.Recipients,
		})
		consumer = tracking.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.Tracking.QueueURL, ingest)
		consumer.Start(ctx)
	} else {
		logger.Info("no tracking queue configured; consumer disabled")
	}

	reports := analytics.NewService(analytics.Stores{
		Events:    stores.Events,
		Snapshots: stores.Snapshots,
		Campaigns: stores.Campaigns,
	})
	interval := cfg.Analytics.RefreshInterval()
	refresher := analytics.NewRefresher(reports,
		distlock.NewLock(redisClient, stores.DB, "engagement:snapshot-refresh", interval), interval)
	if err := refresher.Start(ctx); err != nil {
		logger.Error("failed to start refresher", "error", err)
		os.Exit(1)
	}

	logger.Info("worker running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")
	if consumer != nil {
		consumer.Stop()
	}
	refresher.Stop()
	cancel()
	logger.Info("worker stopped")
}
