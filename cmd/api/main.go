package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/carebridge-ops/carebridge-backend/api/controllers"
	"github.com/carebridge-ops/carebridge-backend/api/routes"
	"github.com/carebridge-ops/carebridge-backend/internal/analysis"
	"github.com/carebridge-ops/carebridge-backend/internal/analytics"
	"github.com/carebridge-ops/carebridge-backend/internal/poller"
	"github.com/carebridge-ops/carebridge-backend/internal/recordings"
	"github.com/carebridge-ops/carebridge-backend/internal/watch"
	drivewebhook "github.com/carebridge-ops/carebridge-backend/internal/webhooks/drive"
	"github.com/carebridge-ops/carebridge-backend/pkg/bigquery"
	"github.com/carebridge-ops/carebridge-backend/pkg/config"
	"github.com/carebridge-ops/carebridge-backend/pkg/db"
	"github.com/carebridge-ops/carebridge-backend/pkg/drive"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
	"github.com/carebridge-ops/carebridge-backend/pkg/migrate"
	"github.com/carebridge-ops/carebridge-backend/pkg/pubsub"
	"github.com/carebridge-ops/carebridge-backend/pkg/redis"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	// Downstream analysis is best-effort: a missing broker must not take
	// the ingestion API down with it.
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
	var bigqueryPinger controllers.Pinger
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
		bigqueryPinger = bigqueryClient

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

	recordingsService, err := recordings.NewService(repo, processor)
	if err != nil {
		logg.Error(context.Background(), "failed to create recordings service", err)
		os.Exit(1)
	}

	drivePoller, err := poller.New(poller.PollerParams{
		Repo:      repo,
		Processor: processor,
		Gate:      gate,
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

	driveWebhookService, err := drivewebhook.NewService(repo, processor, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create drive webhook service", err)
		os.Exit(1)
	}

	pingers := map[string]controllers.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
		"bigquery": bigqueryPinger,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			pingers,
			recordingsService,
			drivePoller,
			watchManager,
			driveWebhookService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
