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

	"github.com/ignite/engagement-tracker/internal/api"
	"github.com/ignite/engagement-tracker/internal/config"
	"github.com/ignite/engagement-tracker/internal/mailer"
	"github.com/ignite/engagement-tracker/internal/observability"
	"github.com/ignite/engagement-tracker/internal/pkg/distlock"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
	"github.com/ignite/engagement-tracker/internal/service/analytics"
	"github.com/ignite/engagement-tracker/internal/service/campaign"
	"github.com/ignite/engagement-tracker/internal/service/engagement"
	"github.com/ignite/engagement-tracker/internal/storage"
	"github.com/ignite/engagement-tracker/internal/tracking"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	logger.Init("engagement-server", logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.ShouldRedact())

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
		redisClient, err = distlock.OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable, falling back for the refresh lock", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observability.Register(reg)

	// Sending
	m, err := newMailer(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize mailer", "error", err)
		os.Exit(1)
	}
	guarded := mailer.NewGuarded(m, mailer.GuardConfig{
		RatePerSecond: cfg.Sender.RatePerSecond,
		Burst:         cfg.Sender.Burst,
	})
	rewriter := tracking.NewRewriter(cfg.Tracking.BaseURL)
	pool := campaign.NewPool(cfg.Sender.Workers, cfg.Sender.QueueSize)
	if err := pool.Start(ctx); err != nil {
		logger.Error("failed to start send pool", "error", err)
		os.Exit(1)
	}
	campaigns := campaign.NewService(
		campaign.Stores{Campaigns: stores.Campaigns, Recipients: stores.Recipients, Events: stores.Events},
		rewriter, guarded, mailer.NewPersonalizer(), pool)

	// Tracking, ingested inline
	ingest := engagement.NewService(engagement.Stores{
		Events:     stores.Events,
		Campaigns:  stores.Campaigns,
		Recipients: stores.Recipients,
	})
	trackingHandler := tracking.NewHandler(ingest, cfg.Tracking.LocationHeader)

	// Analytics
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

	router := api.SetupRoutes(api.NewHandlers(reports, campaigns), api.RouterOptions{
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Tracking:       trackingHandler,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", srv.Addr, "storage", cfg.Storage.Type, "tracking_base_url", cfg.Tracking.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	refresher.Stop()
	// In-flight sends get the rest of the shutdown window, then are cancelled
	// and their campaigns marked failed.
	pool.Stop(shutdownCtx)
	cancel()

	logger.Info("server stopped")
}

func newMailer(ctx context.Context, cfg *config.Config) (mailer.Mailer, error) {
	if !cfg.SES.Enabled {
		logger.Warn("SES disabled; outbound mail is logged, not sent")
		return mailer.LogMailer{}, nil
	}
	awsCfg, err := storage.LoadAWSConfig(ctx, storage.AWSOptions{
		Region:    cfg.SES.Region,
		AccessKey: cfg.SES.AccessKey,
		SecretKey: cfg.SES.SecretKey,
	})
	if err != nil {
		return nil, err
	}
	ses := mailer.NewSESMailer(awsCfg)
	ses.ConfigurationSet = cfg.SES.ConfigurationSet
	logger.Info("SES mailer enabled", "region", cfg.SES.Region)
	return ses, nil
}
