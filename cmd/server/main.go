package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/growthacademy/subscriptions/modules/webhooks"
	"github.com/growthacademy/subscriptions/pkg/audit"
	"github.com/growthacademy/subscriptions/pkg/config"
	"github.com/growthacademy/subscriptions/pkg/httpserver"
	"github.com/growthacademy/subscriptions/pkg/logger"
	"github.com/growthacademy/subscriptions/pkg/pg"
	"github.com/growthacademy/subscriptions/pkg/reconcile"
	"github.com/growthacademy/subscriptions/pkg/subscription"
)

func main() {
	var (
		logCfg     logger.Config
		pgCfg      pg.Config
		httpCfg    httpserver.Config
		webhookCfg webhooks.Config
	)
	config.MustLoad(&logCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&webhookCfg)

	log := logger.New(logCfg, "subscriptions", os.Stderr)

	if err := run(context.Background(), log, pgCfg, httpCfg, webhookCfg); err != nil {
		log.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, pgCfg pg.Config, httpCfg httpserver.Config, webhookCfg webhooks.Config) error {
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	engine := reconcile.New(
		subscription.NewPgStore(pool),
		subscription.NewPgCustomerStore(pool),
		subscription.NewPgPlanStore(pool),
		audit.NewLogger(audit.NewPgStorage(pool), log),
		log,
	)

	r := chi.NewRouter()
	r.Get("/healthz", httpserver.HealthHandler(pg.Healthcheck(pool), log))
	r.Mount("/", webhooks.Router(webhookCfg, engine, log))

	log.Info("starting server", slog.String("addr", httpCfg.Addr))
	return httpserver.New(httpCfg, log).Run(ctx, r)
}
