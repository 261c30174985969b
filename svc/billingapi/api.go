package billingapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/vowbill/handler"
	"github.com/dmitrymomot/vowbill/pkg/billing"
	"github.com/dmitrymomot/vowbill/pkg/binder"
	"github.com/dmitrymomot/vowbill/pkg/clientip"
	"github.com/dmitrymomot/vowbill/pkg/entitlement"
	"github.com/dmitrymomot/vowbill/pkg/httpserver"
	"github.com/dmitrymomot/vowbill/pkg/jwt"
	"github.com/dmitrymomot/vowbill/pkg/ratelimiter"
	"github.com/dmitrymomot/vowbill/pkg/requestid"
	"github.com/dmitrymomot/vowbill/pkg/validator"
)

const defaultWebhookLimit = 1 << 20

// API exposes checkout, webhooks and entitlement reads over HTTP.
type API struct {
	billing  *billing.Service
	resolver *entitlement.Resolver
	auth     *jwt.Service

	logger       *slog.Logger
	metrics      *Metrics
	gatherer     prometheus.Gatherer
	checks       []httpserver.Check
	guard        billing.WorkspaceGuard
	webhookLimit int64
	healthWait   time.Duration

	ips           *clientip.Resolver
	checkoutLimit *ratelimiter.Bucket

	errors handler.ErrorHandler
}

// New creates the API. It panics if any dependency is nil.
func New(svc *billing.Service, resolver *entitlement.Resolver, auth *jwt.Service, opts ...Option) *API {
	if svc == nil {
		panic("billingapi: billing service is required")
	}
	if resolver == nil {
		panic("billingapi: entitlement resolver is required")
	}
	if auth == nil {
		panic("billingapi: jwt service is required")
	}

	a := &API{
		billing:      svc,
		resolver:     resolver,
		auth:         auth,
		logger:       slog.New(slog.DiscardHandler),
		webhookLimit: defaultWebhookLimit,
		healthWait:   3 * time.Second,
		ips:          clientip.NewResolver(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.errors = handler.NewErrorHandler(a.logger, MapError)
	return a
}

// Handle returns the router of the service.
//
//	POST /billing/checkout
//	POST /billing/webhooks/{provider}
//	GET  /billing/workspaces/{workspaceID}/entitlements
//	GET  /billing/workspaces/{workspaceID}/subscription
//	GET  /billing/payments?workspace_id=&limit=
//	GET  /healthz
//	GET  /metrics
func (a *API) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware, a.ips.Middleware, middleware.Recoverer)

	r.Get("/healthz", httpserver.HealthCheckHandler(a.logger, a.healthWait, a.checks...))
	if a.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/billing", func(r chi.Router) {
		r.Post("/webhooks/{provider}", a.webhook)

		r.Group(func(r chi.Router) {
			r.Use(jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
				Service:      a.auth,
				ErrorHandler: a.unauthenticated,
			}))

			r.With(a.limitCheckout()).Post("/checkout", handler.Wrap(a.checkout,
				handler.WithBinders[checkoutRequest](binder.JSON()),
				handler.WithValidator[checkoutRequest](validator.Struct),
				handler.WithErrorHandler[checkoutRequest](a.errors),
			))
			r.Get("/payments", handler.Wrap(a.payments,
				handler.WithBinders[paymentsRequest](binder.Query()),
				handler.WithValidator[paymentsRequest](validator.Struct),
				handler.WithErrorHandler[paymentsRequest](a.errors),
			))

			r.Route("/workspaces/{workspaceID}", func(r chi.Router) {
				r.Get("/entitlements", handler.Wrap(a.entitlements,
					handler.WithBinders[workspaceRequest](binder.Path(chi.URLParam)),
					handler.WithValidator[workspaceRequest](validator.Struct),
					handler.WithDecorators[workspaceRequest](a.requireWorkspace),
					handler.WithErrorHandler[workspaceRequest](a.errors),
				))
				r.Get("/subscription", handler.Wrap(a.subscription,
					handler.WithBinders[workspaceRequest](binder.Path(chi.URLParam)),
					handler.WithValidator[workspaceRequest](validator.Struct),
					handler.WithDecorators[workspaceRequest](a.requireWorkspace),
					handler.WithErrorHandler[workspaceRequest](a.errors),
				))
			})
		})
	})

	return r
}

func (a *API) unauthenticated(w http.ResponseWriter, r *http.Request, err error) {
	a.errors(handler.NewContext(w, r), handler.ErrUnauthorized.Wrap(err))
}

func (a *API) limitCheckout() func(http.Handler) http.Handler {
	if a.checkoutLimit == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	key := ratelimiter.FirstKey(
		func(r *http.Request) string {
			if claims, ok := jwt.GetClaims(r.Context()); ok {
				return claims.Subject
			}
			return ""
		},
		func(r *http.Request) string { return clientip.FromContext(r.Context()) },
	)
	return ratelimiter.Middleware(a.checkoutLimit, key,
		ratelimiter.WithLogger(a.logger),
		ratelimiter.WithDenyHandler(func(w http.ResponseWriter, r *http.Request, _ *ratelimiter.Result) {
			a.errors(handler.NewContext(w, r), errRateLimited)
		}),
	)
}
