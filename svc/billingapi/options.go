package billingapi

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/vowbill/pkg/billing"
	"github.com/dmitrymomot/vowbill/pkg/clientip"
	"github.com/dmitrymomot/vowbill/pkg/httpserver"
	"github.com/dmitrymomot/vowbill/pkg/ratelimiter"
)

// Option configures an API.
type Option func(*API)

// WithLogger sets the API logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics records request metrics in m and serves gatherer on /metrics.
func WithMetrics(m *Metrics, gatherer prometheus.Gatherer) Option {
	return func(a *API) {
		a.metrics = m
		a.gatherer = gatherer
	}
}

// WithHealthChecks adds readiness probes to /healthz.
func WithHealthChecks(checks ...httpserver.Check) Option {
	return func(a *API) {
		a.checks = append(a.checks, checks...)
	}
}

// WithWorkspaceGuard restricts workspace reads to accounts the guard accepts.
func WithWorkspaceGuard(guard billing.WorkspaceGuard) Option {
	return func(a *API) { a.guard = guard }
}

// WithWebhookLimit caps the size of webhook bodies. Non-positive values keep
// the default of 1 MiB.
func WithWebhookLimit(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.webhookLimit = n
		}
	}
}

// WithClientIP sets how client addresses are resolved for logs and rate
// limits. The default trusts no forwarding headers.
func WithClientIP(res *clientip.Resolver) Option {
	return func(a *API) {
		if res != nil {
			a.ips = res
		}
	}
}

// WithCheckoutLimit rate limits checkout creation per account.
func WithCheckoutLimit(limiter *ratelimiter.Bucket) Option {
	return func(a *API) { a.checkoutLimit = limiter }
}

// WithHealthTimeout bounds the readiness probes of /healthz.
func WithHealthTimeout(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.healthWait = d
		}
	}
}
