package webhooks

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router mounts the webhook endpoints and the status check.
//
// Example:
//
//	engine := reconcile.New(subs, customers, plans, auditor, log)
//	r := chi.NewRouter()
//	r.Mount("/", webhooks.Router(cfg, engine, log))
func Router(cfg Config, engine Engine, log *slog.Logger) chi.Router {
	if engine == nil {
		panic("webhooks: engine is required")
	}
	if log == nil {
		panic("webhooks: logger is required")
	}

	h := &handlers{cfg: cfg, engine: engine, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/webhooks/identity", h.identity)
	r.Post("/webhooks/billing", h.billing)
	r.Get("/subscriptions/{userID}", h.status)

	return r
}
