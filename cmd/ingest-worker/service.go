package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/guruji-backend/api/routes"
	"github.com/angelmondragon/guruji-backend/pkg/config"
	"github.com/angelmondragon/guruji-backend/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

type dependency interface {
	Ping(ctx context.Context) error
	Close() error
}

type runner interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       dependency
	Redis    dependency
	PubSub   dependency
	GCS      dependency
	Consumer runner
	Gatherer prometheus.Gatherer
}

type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	deps     []namedDependency
	consumer runner
	server   *http.Server

	shutdownTimeout time.Duration
}

type namedDependency struct {
	name string
	dep  dependency
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Redis == nil:
		return nil, errors.New("redis client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.GCS == nil:
		return nil, errors.New("gcs client is required")
	case params.Consumer == nil:
		return nil, errors.New("lesson video consumer is required")
	}

	deps := []namedDependency{
		{name: "database", dep: params.DB},
		{name: "redis", dep: params.Redis},
		{name: "pubsub", dep: params.PubSub},
		{name: "gcs", dep: params.GCS},
	}
	checks := routes.Checks{}
	for _, d := range deps {
		checks[d.name] = d.dep
	}

	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		deps:     deps,
		consumer: params.Consumer,
		server: &http.Server{
			Addr:              ":" + params.Config.App.Port,
			Handler:           routes.NewRouter(params.Config, params.Logger, checks, params.Gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, d := range s.deps {
		if err := d.dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", d.name), err)
			return fmt.Errorf("%s ping failed: %w", d.name, err)
		}
	}
	s.logg.Info(ctx, "all ingest worker dependencies are ready")
	return nil
}

// Run blocks until ctx is canceled, the consumer exits, or the ops server
// fails. In-flight deliveries are drained for at most the shutdown timeout
// before returning, so Close does not pull clients out from under a handler.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logg.Info(s.logg.WithField(ctx, "addr", s.server.Addr), "ops server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("ops server: %w", err)
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- s.consumer.Run(consumerCtx)
	}()

	var runErr error
	consumerStopped := false
	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "ingest worker context canceled")
		runErr = ctx.Err()
	case err := <-serverErr:
		s.logg.Error(ctx, "ingest worker component stopped", err)
		runErr = err
	case err := <-consumerDone:
		consumerStopped = true
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "ingest worker component stopped", err)
		}
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if !consumerStopped {
		stopConsumer()
		select {
		case err := <-consumerDone:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				s.logg.Error(ctx, "consumer stopped with error during shutdown", err)
			}
			s.logg.Info(ctx, "consumer drained")
		case <-shutdownCtx.Done():
			s.logg.Warn(ctx, "consumer did not drain before the shutdown timeout")
		}
	}

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logg.Error(ctx, "ops server shutdown failed", err)
	}
	return runErr
}

// Close releases every dependency in reverse order of construction.
func (s *Service) Close() error {
	var err error
	for i := len(s.deps) - 1; i >= 0; i-- {
		if closeErr := s.deps[i].dep.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", s.deps[i].name, closeErr))
		}
	}
	return err
}
