package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/carebridge-ops/carebridge-backend/internal/analysis"
	"github.com/carebridge-ops/carebridge-backend/internal/analytics"
	"github.com/carebridge-ops/carebridge-backend/internal/poller"
	"github.com/carebridge-ops/carebridge-backend/internal/recordings"
	"github.com/carebridge-ops/carebridge-backend/internal/watch"
	"github.com/carebridge-ops/carebridge-backend/pkg/bigquery"
	"github.com/carebridge-ops/carebridge-backend/pkg/config"
	"github.com/carebridge-ops/carebridge-backend/pkg/db"
	"github.com/carebridge-ops/carebridge-backend/pkg/drive"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
	"github.com/carebridge-ops/carebridge-backend/pkg/metrics"
	"github.com/carebridge-ops/carebridge-backend/pkg/migrate"
	"github.com/carebridge-ops/carebridge-backend/pkg/pubsub"
	"github.com/carebridge-ops/carebridge-backend/pkg/redis"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "poll-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "poll-worker"

	logg = logger.New(logger.Options{
		ServiceName: "poll-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gate := resilience.New(cfg.Resilience)

	driveClient, err := drive.NewClient(context.Background(), cfg.Drive, cfg.GCP, gate, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap drive client", err)
		os.Exit(1)
	}

	var analysisPublisher *analysis.Publisher
	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Warn(context.Background(), "pubsub unavailable, downstream analysis disabled")
		analysisPublisher = analysis.NewPublisher(nil, logg)
	} else {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		analysisPublisher = analysis.NewPublisher(pubsubClient.AnalysisPublisher(), logg)
	}

	var outcomes *analytics.Writer
	if cfg.BigQuery.Enabled {
		bigqueryClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bigqueryClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()

		outcomes, err = analytics.New(bigqueryClient, analytics.Config{
			Table: bigqueryClient.ProcessingEventsTable(),
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create outcome writer", err)
			os.Exit(1)
		}
	}

	repo := recordings.NewRepository(dbClient.DB())

	locator, err := recordings.NewLocator(driveClient, time.Duration(cfg.Polling.TimeWindowMinutes)*time.Minute)
	if err != nil {
		logg.Error(context.Background(), "failed to create file locator", err)
		os.Exit(1)
	}

	processor, err := recordings.NewProcessor(recordings.ProcessorParams{
		Repo:     repo,
		Locator:  locator,
		Drive:    driveClient,
		Analysis: analysisPublisher,
		Outcomes: outcomes,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create recording processor", err)
		os.Exit(1)
	}

	pollMetrics := metrics.NewPollMetrics(prometheus.DefaultRegisterer)

	drivePoller, err := poller.New(poller.PollerParams{
		Repo:      repo,
		Processor: processor,
		Gate:      gate,
		Metrics:   pollMetrics,
		Logger:    logg,
		Config:    cfg.Polling,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create drive poller", err)
		os.Exit(1)
	}

	watchManager, err := watch.NewManager(watch.NewRepository(dbClient.DB()), driveClient, cfg.Watch, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create watch manager", err)
		os.Exit(1)
	}

	pollJob, err := poller.NewPollJob(drivePoller)
	if err != nil {
		logg.Error(context.Background(), "failed to create poll job", err)
		os.Exit(1)
	}
	reaperJob, err := poller.NewReaperJob(repo, cfg.Polling.StaleAfter, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reaper job", err)
		os.Exit(1)
	}
	renewalJob, err := poller.NewWatchRenewalJob(watchManager)
	if err != nil {
		logg.Error(context.Background(), "failed to create watch renewal job", err)
		os.Exit(1)
	}

	lock, err := poller.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Polling.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create poll lock", err)
		os.Exit(1)
	}

	scheduler, err := poller.NewScheduler(poller.SchedulerParams{
		Logger:   logg,
		Registry: poller.NewRegistry(pollJob, reaperJob, renewalJob),
		Lock:     lock,
		Interval: cfg.Polling.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting poll worker")

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "poll worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "poll worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("poll-worker:%s", env)
}
