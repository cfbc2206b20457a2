package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/guruji-backend/api/middleware"
	"github.com/angelmondragon/guruji-backend/pkg/config"
	"github.com/angelmondragon/guruji-backend/pkg/logger"
)

// NewRouter builds the worker's ops surface: liveness, readiness over the
// given checks, and Prometheus metrics from gatherer.
func NewRouter(cfg *config.Config, logg *logger.Logger, checks Checks, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", healthLive(cfg))
		r.Get("/ready", healthReady(cfg, logg, checks))
	})
	r.Get("/healthz", healthReady(cfg, logg, checks))

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
