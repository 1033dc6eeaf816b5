package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/chatshop/api/routes"
	"github.com/angelmondragon/chatshop/internal/bot"
	"github.com/angelmondragon/chatshop/internal/checkout"
	"github.com/angelmondragon/chatshop/internal/cron"
	"github.com/angelmondragon/chatshop/internal/dispatch"
	"github.com/angelmondragon/chatshop/internal/reconcile"
	"github.com/angelmondragon/chatshop/internal/session"
	telegramwebhook "github.com/angelmondragon/chatshop/internal/webhooks/telegram"
	"github.com/angelmondragon/chatshop/pkg/commerce"
	"github.com/angelmondragon/chatshop/pkg/config"
	"github.com/angelmondragon/chatshop/pkg/db"
	"github.com/angelmondragon/chatshop/pkg/logger"
	"github.com/angelmondragon/chatshop/pkg/metrics"
	"github.com/angelmondragon/chatshop/pkg/migrate"
	"github.com/angelmondragon/chatshop/pkg/redis"
	"github.com/angelmondragon/chatshop/pkg/telegram"
)

const serviceName = "chatshop-bot"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRun(ctx, cfg.DB, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	shopMetrics := metrics.NewShopMetrics(registry)
	jobMetrics := metrics.NewJobMetrics(registry)

	commerceClient, err := commerce.NewClient(cfg.Commerce.BaseURL,
		commerce.WithTimeout(cfg.Commerce.Timeout),
		commerce.WithLogger(logg),
		commerce.WithPaths(commerce.Paths{
			Users:       cfg.Commerce.UsersPath,
			Categories:  cfg.Commerce.CategoriesPath,
			Products:    cfg.Commerce.ProductsPath,
			OrderGroups: cfg.Commerce.OrderGroupsPath,
			Orders:      cfg.Commerce.OrdersPath,
		}),
	)
	requireResource(ctx, logg, "commerce client", err)

	telegramClient, err := telegram.NewClient(cfg.Telegram.Token,
		telegram.WithAPIURL(cfg.Telegram.APIURL),
		telegram.WithTimeout(cfg.Telegram.Timeout),
		telegram.WithPaymentProviderToken(cfg.Telegram.PaymentToken),
	)
	requireResource(ctx, logg, "telegram client", err)

	ledger := reconcile.NewRepository(dbClient.DB())
	reconciler, err := reconcile.NewService(ledger, logg)
	requireResource(ctx, logg, "reconcile service", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Gateway:    commerceClient,
		Reconciler: reconciler,
		Outcomes:   shopMetrics,
		Logger:     logg,
	})
	requireResource(ctx, logg, "checkout service", err)

	store := session.NewStore()
	handler, err := bot.NewHandler(bot.Params{
		Store:    store,
		Channel:  telegramClient,
		Backend:  commerceClient,
		Checkout: checkoutService,
		Logger:   logg,
		Events:   shopMetrics,
		Settings: bot.Settings{
			PaymentGated:    cfg.Checkout.PaymentGated(),
			Currency:        cfg.Checkout.Currency,
			FallbackImage:   cfg.Telegram.FallbackImage,
			ImageHostPrefix: cfg.Telegram.ImageHostPrefix,
		},
	})
	requireResource(ctx, logg, "bot handler", err)

	guard, err := telegramwebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency guard", err)

	// Handlers outlive the signal so queued events can finish during shutdown.
	workCtx, cancelWork := context.WithCancel(logg.WithField(context.Background(), "env", cfg.App.Env))
	defer cancelWork()
	dispatcher, err := dispatch.New(workCtx, logg, dispatch.WithMaxPending(cfg.Webhook.MaxPending))
	requireResource(ctx, logg, "dispatcher", err)

	sweeper, err := session.NewSweeper(store, cfg.Session.IdleTTL, logg, shopMetrics)
	requireResource(ctx, logg, "session sweeper", err)
	sweepService, err := cron.NewService(cron.ServiceParams{
		Name:     "session-sweeper",
		Logger:   logg,
		Registry: cron.NewRegistry(sweeper),
		Metrics:  jobMetrics,
		Interval: cfg.Session.SweepInterval,
	})
	requireResource(ctx, logg, "session sweeper service", err)

	reportJob, err := reconcile.NewReportJob(reconcile.ReportJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repo:       ledger,
		Gauge:      shopMetrics,
		StaleAfter: cfg.Reconcile.StaleAfter,
	})
	requireResource(ctx, logg, "orphan report job", err)
	reportLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(reportJob.Name()), 0)
	requireResource(ctx, logg, "orphan report lock", err)
	reportService, err := cron.NewService(cron.ServiceParams{
		Name:     "orphan-report",
		Logger:   logg,
		Registry: cron.NewRegistry(reportJob),
		Lock:     reportLock,
		Metrics:  jobMetrics,
		Interval: cfg.Reconcile.ReportInterval,
	})
	requireResource(ctx, logg, "orphan report service", err)

	if cfg.Telegram.WebhookURL != "" {
		if err := telegramClient.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logg.Error(ctx, "failed to register telegram webhook", err)
			os.Exit(1)
		}
		logg.Info(logg.WithField(ctx, "webhook_url", cfg.Telegram.WebhookURL), "telegram webhook registered")
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, handler, dispatcher, guard, reconciler, store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"addr":          addr,
		"checkout_flow": cfg.Checkout.Flow,
	})
	logg.Info(ctx, "starting chat storefront")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error { return ignoreCanceled(sweepService.Run(groupCtx)) })
	group.Go(func() error { return ignoreCanceled(reportService.Run(groupCtx)) })
	group.Go(func() error {
		<-groupCtx.Done()
		return shutdown(ctx, logg, cfg.App.ShutdownTimeout, server, dispatcher, cancelWork)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "chat storefront stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "chat storefront shut down gracefully")
}

// shutdown stops intake first, then lets queued events drain before
// canceling whatever is still running.
func shutdown(ctx context.Context, logg *logger.Logger, timeout time.Duration, server *http.Server, dispatcher *dispatch.Dispatcher, cancelWork context.CancelFunc) error {
	logg.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	err = multierr.Append(err, dispatcher.Close(shutdownCtx))
	cancelWork()
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
