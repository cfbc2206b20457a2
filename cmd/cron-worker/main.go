package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/guruji-backend/internal/cron"
	"github.com/angelmondragon/guruji-backend/internal/lessons"
	"github.com/angelmondragon/guruji-backend/pkg/config"
	"github.com/angelmondragon/guruji-backend/pkg/db"
	"github.com/angelmondragon/guruji-backend/pkg/instance"
	"github.com/angelmondragon/guruji-backend/pkg/logger"
	"github.com/angelmondragon/guruji-backend/pkg/metrics"
	"github.com/angelmondragon/guruji-backend/pkg/migrate"
	"github.com/angelmondragon/guruji-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	flag.Parse()

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
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()
	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), 0)
	requireResource(ctx, logg, "cron lock", err)

	stuckJob, err := cron.NewStuckLessonJob(cron.StuckLessonJobParams{
		Logger:     logg,
		Lessons:    lessons.NewRepository(dbClient.DB()),
		Metrics:    cronMetrics,
		StuckAfter: cfg.Reconcile.StuckAfter,
	})
	requireResource(ctx, logg, "stuck lesson job", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(stuckJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Reconcile.Interval,
	})
	requireResource(ctx, logg, "cron service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"lock":        lock.Key(),
	})

	if *once {
		logg.Info(runCtx, "running cron jobs once")
		if err := service.RunOnce(runCtx); err != nil {
			logg.Error(runCtx, "cron run failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(runCtx, "starting cron worker")
	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "cron worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("%s:%s", serviceName, env)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
