package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/guruji-backend/internal/ingest"
	"github.com/angelmondragon/guruji-backend/internal/ingest/consumer"
	"github.com/angelmondragon/guruji-backend/internal/lessons"
	"github.com/angelmondragon/guruji-backend/pkg/config"
	"github.com/angelmondragon/guruji-backend/pkg/db"
	"github.com/angelmondragon/guruji-backend/pkg/instance"
	"github.com/angelmondragon/guruji-backend/pkg/idempotency"
	"github.com/angelmondragon/guruji-backend/pkg/logger"
	"github.com/angelmondragon/guruji-backend/pkg/metrics"
	"github.com/angelmondragon/guruji-backend/pkg/migrate"
	"github.com/angelmondragon/guruji-backend/pkg/pubsub"
	"github.com/angelmondragon/guruji-backend/pkg/redis"
	"github.com/angelmondragon/guruji-backend/pkg/storage/gcs"
	"github.com/angelmondragon/guruji-backend/pkg/youtube"
)

const serviceName = "ingest-worker"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Static: map[string]string{
			"env":      cfg.App.Env,
			"instance": instance.GetID(),
		},
	})

	dbClient, err := db.Init(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	requireResource(ctx, logg, "gcs", err)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)

	claims, err := idempotency.NewManager(redisClient, cfg.Ingest.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	ingestMetrics := metrics.NewIngestMetrics(prometheus.DefaultRegisterer)
	repo := lessons.NewRepository(dbClient.DB())

	resolver, err := ingest.NewResolver(repo, cfg.Ingest.ObjectPrefix, logg)
	requireResource(ctx, logg, "lesson resolver", err)

	creds := youtube.CredentialsFromConfig(cfg.YouTube)
	if err := creds.Validate(); err != nil {
		// uploads fail per invocation until the secrets are provisioned
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "video host secrets incomplete")
	}

	orchestrator, err := ingest.NewOrchestrator(ingest.Params{
		Resolver:      resolver,
		Store:         repo,
		Downloader:    gcsClient,
		Authenticator: youtube.OAuthAuthenticator{},
		Credentials:   creds,
		UploadTimeout: cfg.Ingest.UploadTimeout,
		Metrics:       ingestMetrics,
		Logger:        logg,
	})
	requireResource(ctx, logg, "orchestrator", err)

	lessonConsumer, err := consumer.NewConsumer(
		orchestrator,
		claims,
		pubsubClient.LessonVideoSubscription(cfg.Ingest),
		ingestMetrics,
		logg,
	)
	requireResource(ctx, logg, "lesson video consumer", err)

	service, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		GCS:      gcsClient,
		Consumer: lessonConsumer,
		Gatherer: prometheus.DefaultGatherer,
	})
	requireResource(ctx, logg, "ingest service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "ingest worker ready")

	runErr := service.Run(runCtx)
	if closeErr := service.Close(); closeErr != nil {
		logg.Error(runCtx, "error closing ingest worker resources", closeErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(runCtx, "ingest worker stopped unexpectedly", runErr)
		os.Exit(1)
	}
	logg.Info(runCtx, "ingest worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
