package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/propfin/core"
	"github.com/dmitrymomot/propfin/db"
	billingmod "github.com/dmitrymomot/propfin/modules/billing"
	propertymod "github.com/dmitrymomot/propfin/modules/property"
	"github.com/dmitrymomot/propfin/pkg/config"
	"github.com/dmitrymomot/propfin/pkg/email"
	"github.com/dmitrymomot/propfin/pkg/environment"
	"github.com/dmitrymomot/propfin/pkg/httpserver"
	"github.com/dmitrymomot/propfin/pkg/logger"
	"github.com/dmitrymomot/propfin/pkg/pg"
	"github.com/dmitrymomot/propfin/pkg/ratelimiter"
	"github.com/dmitrymomot/propfin/pkg/redis"
	"github.com/dmitrymomot/propfin/pkg/requestid"
	"github.com/dmitrymomot/propfin/svc/auth"
	"github.com/dmitrymomot/propfin/svc/billing"
	"github.com/dmitrymomot/propfin/svc/property"
)

type appConfig struct {
	Env              string        `env:"APP_ENV" envDefault:"development"`
	ServiceName      string        `env:"SERVICE_NAME" envDefault:"propfin"`
	ReadinessTimeout time.Duration `env:"READINESS_TIMEOUT" envDefault:"2s"`
}

func main() {
	app := config.MustLoad[appConfig]()
	env := environment.Parse(app.Env)

	log := logger.New(
		logger.WithEnvironment(env, app.ServiceName),
		logger.WithConfig(config.MustLoad[logger.Config]()),
		logger.WithContextExtractors(requestid.LoggerExtractor(), auth.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, app, log); err != nil {
		log.Error("server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, app appConfig, log *slog.Logger) error {
	billingCfg, err := config.Load[billing.Config]()
	if err != nil {
		return err
	}
	stripeCfg, err := config.Load[billing.StripeConfig]()
	if err != nil {
		return err
	}
	serverCfg, err := config.Load[httpserver.Config]()
	if err != nil {
		return err
	}

	probes := map[string]httpserver.Probe{}

	catalog, err := loadCatalog(billingCfg.CatalogPath)
	if err != nil {
		return err
	}
	trialPlan, err := billing.ParsePlan(billingCfg.TrialPlan)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := httpserver.NewMetrics(registry)
	billingMetrics := billing.NewMetrics(registry)

	var (
		subscriptions billing.Store
		properties    property.Store
		pool          *pgxpool.Pool
	)
	switch billingCfg.Store {
	case "memory":
		log.Warn("using in-memory stores, data is lost on restart")
		subscriptions = billing.NewMemoryStore(billing.SystemClock)
		properties = property.NewMemoryStore()
	default:
		pgCfg, err := config.Load[pg.Config]()
		if err != nil {
			return err
		}
		pool, err = pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool, db.Migrations, db.MigrationsDir, pgCfg, log); err != nil {
			return err
		}
		probes["postgres"] = pg.Healthcheck(pool)
		subscriptions = billing.NewPGStore(pool, billing.SystemClock)
		properties = property.NewPGStore(pool)
	}

	dedupe, closeDedupe, err := newDeduplicator(ctx, billingCfg, probes, log)
	if err != nil {
		return err
	}
	defer closeDedupe()

	processor, err := billing.NewStripeProcessor(stripeCfg)
	if err != nil {
		return err
	}

	enforcer := billing.NewEnforcer(subscriptions,
		billing.WithCounter(billing.ResourceProperties, properties.CountActive),
		billing.WithEnforcerMetrics(billingMetrics),
		billing.WithEnforcerLogger(log),
	)
	propertySvc := property.NewService(properties, enforcer, property.WithLogger(log))

	orchestrator := billing.NewOrchestrator(catalog, subscriptions, processor, enforcer,
		billing.WithLogger(log),
		billing.WithMetrics(billingMetrics),
		billing.WithTrial(billingCfg.TrialDays, trialPlan),
		billing.WithConflictRetries(billingCfg.ConflictRetries),
		billing.WithRedirectURLs(billingCfg.CheckoutSuccessURL, billingCfg.CheckoutCancelURL, billingCfg.PortalReturnURL),
	)

	dispatcherOpts := []billing.DispatcherOption{
		billing.WithDeduplicator(dedupe),
		billing.WithDispatcherMetrics(billingMetrics),
		billing.WithDispatcherLogger(log),
	}
	if pool != nil {
		notifier, err := newNotifier(pool, billingCfg)
		if err != nil {
			return err
		}
		dispatcherOpts = append(dispatcherOpts, billing.WithNotifier(notifier))
	}
	dispatcher := billing.NewDispatcher(processor,
		billing.NewEventHandlers(subscriptions, processor, catalog, billingCfg.ConflictRetries, log),
		dispatcherOpts...,
	)

	limitCfg, err := config.Load[ratelimiter.Config]()
	if err != nil {
		return err
	}
	limitStore := ratelimiter.NewMemoryStore()
	defer limitStore.Close()
	limiter, err := ratelimiter.NewBucket(limitStore, limitCfg)
	if err != nil {
		return err
	}

	errs := core.NewErrorHandler(log, billingmod.MapError, propertymod.MapError)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(httpMetrics.Middleware)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, app.ReadinessTimeout, probes))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	r.Mount("/", billingmod.Router(billingmod.RouterOptions{
		Billing:      billingmod.NewService(orchestrator, errs, billingmod.WithLimiter(limiter)),
		Webhook:      billingmod.NewWebhookService(dispatcher, log),
		Provisioning: billingmod.NewProvisioningService(orchestrator, billingCfg.InternalToken, errs),
	}))
	r.Mount("/properties", propertymod.Router(propertymod.RouterOptions{
		Properties: propertymod.NewService(propertySvc, errs),
	}))

	return httpserver.New(serverCfg, httpserver.WithLogger(log)).Run(ctx, r)
}

func loadCatalog(path string) (*billing.Catalog, error) {
	if path == "" {
		return billing.DefaultCatalog()
	}
	return billing.LoadCatalog(path)
}

// newDeduplicator uses Redis when REDIS_URL is set so the dedupe window is
// shared across instances, and a per-process LRU otherwise.
func newDeduplicator(ctx context.Context, cfg billing.Config, probes map[string]httpserver.Probe, log *slog.Logger) (billing.Deduplicator, func(), error) {
	redisCfg, err := config.Load[redis.Config]()
	if err != nil {
		return nil, nil, err
	}
	if !redisCfg.Enabled() {
		log.Info("redis not configured, webhook dedupe is per instance")
		return billing.NewMemoryDeduplicator(cfg.DedupeCapacity, cfg.DedupeTTL, billing.SystemClock), func() {}, nil
	}

	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return nil, nil, err
	}
	probes["redis"] = redis.Healthcheck(client)
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Error("failed to close redis client", logger.Error(err))
		}
	}
	return billing.NewRedisDeduplicator(client, cfg.DedupeTTL), closeFn, nil
}

func newNotifier(pool *pgxpool.Pool, cfg billing.Config) (*billing.EmailNotifier, error) {
	emailCfg, err := config.Load[email.Config]()
	if err != nil {
		return nil, err
	}
	sender, err := email.NewSender(emailCfg)
	if err != nil {
		return nil, err
	}
	return billing.NewEmailNotifier(sender, billing.NewPGUserDirectory(pool), cfg.PortalReturnURL), nil
}
