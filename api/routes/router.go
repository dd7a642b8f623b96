package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carebridge-ops/carebridge-backend/api/controllers"
	webhookcontrollers "github.com/carebridge-ops/carebridge-backend/api/controllers/webhooks"
	"github.com/carebridge-ops/carebridge-backend/api/middleware"
	"github.com/carebridge-ops/carebridge-backend/internal/poller"
	"github.com/carebridge-ops/carebridge-backend/internal/recordings"
	"github.com/carebridge-ops/carebridge-backend/internal/watch"
	drivewebhook "github.com/carebridge-ops/carebridge-backend/internal/webhooks/drive"
	"github.com/carebridge-ops/carebridge-backend/pkg/config"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	pingers map[string]controllers.Pinger,
	recordingsService recordings.Service,
	pollService *poller.Poller,
	watchManager *watch.Manager,
	driveWebhookService *drivewebhook.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})

	r.Route("/api/v1/recordings", func(r chi.Router) {
		r.Post("/process", controllers.ProcessRecording(recordingsService, logg))
		r.Post("/{recordingId}/cancel", controllers.CancelRecording(recordingsService, logg))
		r.Post("/poll", controllers.TriggerPoll(pollService, logg))
		r.Get("/poll", controllers.PollHealth(pollService, logg))
	})

	r.Route("/api/v1/cron", func(r chi.Router) {
		r.With(middleware.CronAuth(cfg.Cron.Secret, logg)).
			Get("/poll-drive", controllers.CronPoll(pollService, logg))
	})

	r.Route("/api/v1/webhooks/drive", func(r chi.Router) {
		r.Post("/", webhookcontrollers.DriveNotification(driveWebhookService, logg))
		r.Get("/", webhookcontrollers.DriveChallenge(logg))
	})

	r.Route("/api/v1/watch", func(r chi.Router) {
		r.Post("/setup", controllers.SetupWatch(watchManager, logg))
	})

	return r
}
