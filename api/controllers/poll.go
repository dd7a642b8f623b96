package controllers

import (
	"context"
	"net/http"

	"github.com/carebridge-ops/carebridge-backend/api/responses"
	"github.com/carebridge-ops/carebridge-backend/api/validators"
	"github.com/carebridge-ops/carebridge-backend/internal/poller"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
)

type pollRunner interface {
	Run(ctx context.Context, params poller.Params) (poller.RunStats, error)
	Health() poller.Health
}

type pollPayload struct {
	IntervalMinutes      int   `json:"interval_minutes,omitempty" validate:"omitempty,min=1"`
	MaxResults           int   `json:"max_results,omitempty" validate:"omitempty,min=1,max=100"`
	Concurrency          int   `json:"concurrency,omitempty" validate:"omitempty,min=1,max=10"`
	EnableRateLimit      *bool `json:"enable_rate_limit,omitempty"`
	EnableCircuitBreaker *bool `json:"enable_circuit_breaker,omitempty"`
}

type pollResponse struct {
	Success   bool   `json:"success"`
	Checked   int    `json:"checked"`
	Processed int    `json:"processed"`
	Errors    int    `json:"errors"`
	Skipped   int    `json:"skipped"`
	Duration  string `json:"duration"`
	Message   string `json:"message"`
}

// TriggerPoll runs one poll cycle with optional overrides. The run itself
// always answers 200; per-recording failures are counted, not raised.
func TriggerPoll(p pollRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if p == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "poller unavailable"))
			return
		}

		var payload pollPayload
		if r.Body != nil && r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		stats, err := p.Run(ctx, poller.Params{
			LookbackMinutes:      payload.IntervalMinutes,
			MaxResults:           payload.MaxResults,
			Concurrency:          payload.Concurrency,
			EnableRateLimit:      payload.EnableRateLimit,
			EnableCircuitBreaker: payload.EnableCircuitBreaker,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, pollResponse{
			Success:   true,
			Checked:   stats.Checked,
			Processed: stats.Processed,
			Errors:    stats.Errors,
			Skipped:   stats.Skipped,
			Duration:  stats.Duration.String(),
			Message:   "poll run complete",
		})
	}
}

// PollHealth reports the resilience gate snapshot and the last run.
func PollHealth(p pollRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if p == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "poller unavailable"))
			return
		}
		responses.WriteSuccess(w, p.Health())
	}
}

// CronPoll is the scheduled entry point: same poll, fixed defaults.
func CronPoll(p pollRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if p == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "poller unavailable"))
			return
		}

		stats, err := p.Run(ctx, poller.Params{})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, pollResponse{
			Success:   true,
			Checked:   stats.Checked,
			Processed: stats.Processed,
			Errors:    stats.Errors,
			Skipped:   stats.Skipped,
			Duration:  stats.Duration.String(),
			Message:   "poll run complete",
		})
	}
}
