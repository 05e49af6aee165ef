package controllers

import (
	"context"
	"net/http"

	"github.com/sokomart-dev/sokomart-backend/api/responses"
	"github.com/sokomart-dev/sokomart-backend/pkg/config"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
)

const envHeader = "X-SokoMart-Env"

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the dependencies a request actually needs. Nil pingers
// are skipped so workers can share the handler with a partial stack.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependency unavailable").WithDetails(map[string]any{"dependency": name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

// ReadyDeps builds the dependency set for HealthReady.
func ReadyDeps(dbP pinger, redisP pinger) map[string]pinger {
	return map[string]pinger{
		"database": dbP,
		"redis":    redisP,
	}
}
