package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/chatshop/api/controllers"
	webhookcontrollers "github.com/angelmondragon/chatshop/api/controllers/webhooks"
	"github.com/angelmondragon/chatshop/api/middleware"
	"github.com/angelmondragon/chatshop/pkg/config"
	"github.com/angelmondragon/chatshop/pkg/db"
	"github.com/angelmondragon/chatshop/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP controllers.Pinger,
	gatherer prometheus.Gatherer,
	eventHandler webhookcontrollers.EventHandler,
	queue webhookcontrollers.Submitter,
	updateGuard webhookcontrollers.UpdateGuard,
	ledger controllers.OrphanLedger,
	sessions controllers.SessionViewer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	if redisP != nil {
		deps["redis"] = redisP
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(middleware.SharedSecret(middleware.TelegramSecretHeader, cfg.Telegram.WebhookSecret, logg))
		r.Post("/telegram", webhookcontrollers.TelegramWebhook(eventHandler, queue, updateGuard, logg))
	})

	// Operator routes exist only when a token is configured.
	if cfg.Admin.Token != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.SharedSecret(middleware.AdminTokenHeader, cfg.Admin.Token, logg))
			if ledger != nil {
				r.Get("/orphans", controllers.AdminOrphans(logg, ledger))
				r.Post("/orphans/{orderGroupID}/resolve", controllers.AdminResolveOrphan(logg, ledger))
			}
			if sessions != nil {
				r.Get("/sessions/{chatID}", controllers.AdminSession(logg, sessions))
			}
		})
	}

	return r
}
