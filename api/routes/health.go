package routes

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/angelmondragon/guruji-backend/api/responses"
	"github.com/angelmondragon/guruji-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/guruji-backend/pkg/errors"
	"github.com/angelmondragon/guruji-backend/pkg/logger"
)

const (
	envHeader         = "X-Guruji-Env"
	readyCheckTimeout = 3 * time.Second
)

// Pinger is any dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checks maps a dependency name (db, redis, pubsub, gcs) to its pinger.
type Checks map[string]Pinger

func healthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func healthReady(cfg *config.Config, logg *logger.Logger, checks Checks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)

		failing := map[string]string{}
		for _, name := range names {
			if checks[name] == nil {
				continue
			}
			if err := checks[name].Ping(ctx); err != nil {
				failing[name] = err.Error()
			}
		}
		if len(failing) > 0 {
			err := pkgerrors.New(pkgerrors.CodeUnknown, "dependency check failed")
			responses.WriteError(ctx, logg, w, http.StatusServiceUnavailable, err, failing)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": names})
	}
}
