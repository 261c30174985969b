package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/vowbill/pkg/billing"
	"github.com/dmitrymomot/vowbill/pkg/clientip"
	"github.com/dmitrymomot/vowbill/pkg/config"
	"github.com/dmitrymomot/vowbill/pkg/entitlement"
	"github.com/dmitrymomot/vowbill/pkg/httpserver"
	"github.com/dmitrymomot/vowbill/pkg/jwt"
	"github.com/dmitrymomot/vowbill/pkg/logger"
	"github.com/dmitrymomot/vowbill/pkg/pg"
	"github.com/dmitrymomot/vowbill/pkg/ratelimiter"
	"github.com/dmitrymomot/vowbill/pkg/redis"
	"github.com/dmitrymomot/vowbill/pkg/requestid"
	"github.com/dmitrymomot/vowbill/svc/billingapi"
	"github.com/dmitrymomot/vowbill/svc/billingapi/pgstore"
)

func main() {
	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.NewFromConfig(logCfg, logger.WithContextExtractors(
		requestid.LoggerExtractor(),
		clientip.LoggerExtractor(),
	))
	logger.SetAsDefault(log)

	if err := run(context.Background(), log); err != nil {
		log.Error("service stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	var (
		apiCfg   billingapi.Config
		pgCfg    pg.Config
		redisCfg redis.Config
		httpCfg  httpserver.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&apiCfg) },
		func() error { return config.Load(&pgCfg) },
		func() error { return config.Load(&redisCfg) },
		func() error { return config.Load(&httpCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pgCfg, log); err != nil {
		return err
	}

	checks := []httpserver.Check{{Name: "postgres", Probe: pg.Healthcheck(pool)}}

	catalog, err := billingapi.LoadCatalog(ctx, apiCfg)
	if err != nil {
		return err
	}
	provider, err := billingapi.NewProvider(apiCfg)
	if err != nil {
		return err
	}
	tokens, err := jwt.NewFromString(apiCfg.JWTSecret, jwt.WithIssuer(apiCfg.JWTIssuer))
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := billingapi.NewMetrics(registry, apiCfg.MetricsNamespace)

	snapshots := entitlement.NewMemoryCache(apiCfg.CacheCapacity)
	snapshots.OnEvict(metrics.ObserveCacheEviction)
	var (
		cache      entitlement.Cache = snapshots
		limitStore ratelimiter.Store
	)
	if redisCfg.Enabled() {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close()
		cache = entitlement.NewRedisCache(redis.NewStorage(client, redisCfg.KeyPrefix+"entitlement:"))
		limitStore = ratelimiter.NewRedisStore(client, redisCfg.KeyPrefix+"ratelimit:")
		checks = append(checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(client, redisCfg.KeyPrefix)})
	} else {
		mem := ratelimiter.NewMemoryStore()
		defer mem.Close()
		limitStore = mem
	}

	checkoutLimit, err := ratelimiter.NewBucket(limitStore, ratelimiter.Config{
		Capacity:       apiCfg.CheckoutBurst,
		RefillRate:     1,
		RefillInterval: apiCfg.CheckoutRefill,
	})
	if err != nil {
		return err
	}

	store := pgstore.New(pool)
	resolver := entitlement.NewResolver(store, catalog,
		entitlement.WithCache(cache),
		entitlement.WithTTL(apiCfg.EntitlementTTL),
		entitlement.WithCacheObserver(metrics.ObserveCache),
		entitlement.WithLogger(log.With(logger.Component("entitlement"))),
	)
	// Shared snapshots may predate the catalog loaded above.
	if err := resolver.Purge(ctx); err != nil {
		log.Warn("failed to purge entitlement cache", logger.Error(err))
	}
	svc := billing.NewService(provider, catalog, store, store, store,
		billing.WithLogger(log.With(logger.Component("billing"))),
		billing.WithInvalidator(resolver),
		billing.WithBaseURL(apiCfg.BaseURL),
		billing.WithReturnPaths(apiCfg.SuccessPath, apiCfg.CancelPath),
		billing.WithUpstreamTimeout(apiCfg.UpstreamTimeout),
	)

	api := billingapi.New(svc, resolver, tokens,
		billingapi.WithLogger(log.With(logger.Component("http"))),
		billingapi.WithMetrics(metrics, registry),
		billingapi.WithHealthChecks(checks...),
		billingapi.WithHealthTimeout(apiCfg.HealthTimeout),
		billingapi.WithClientIP(clientip.NewResolver(apiCfg.TrustedIPHeaders...)),
		billingapi.WithCheckoutLimit(checkoutLimit),
		billingapi.WithWebhookLimit(apiCfg.WebhookMaxBytes),
	)

	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(addr string) {
			log.Info("billing service listening",
				slog.String("addr", addr),
				logger.Provider(provider.Name()),
			)
		}),
	)
	return srv.Run(ctx, api.Handle())
}
