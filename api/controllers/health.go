package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/carebridge-ops/carebridge-backend/api/responses"
	"github.com/carebridge-ops/carebridge-backend/pkg/config"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
)

const readyTimeout = 5 * time.Second

// Pinger is any dependency that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CareBridge-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the hard dependencies. Nil pingers are skipped so
// binaries that don't wire a dependency stay ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		w.Header().Set("X-CareBridge-Env", cfg.App.Env)

		checks := map[string]string{}
		for name, pinger := range pingers {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				checks[name] = "unreachable"
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeInternal, err, "dependency "+name+" is unreachable").
						WithDetails(checks))
				return
			}
			checks[name] = "ok"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
