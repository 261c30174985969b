package billingapi

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrymomot/vowbill/pkg/billing"
)

// Metrics holds the Prometheus collectors of the billing service.
// A nil *Metrics records nothing.
type Metrics struct {
	webhooks        *prometheus.CounterVec
	webhookDuration *prometheus.HistogramVec
	checkouts       *prometheus.CounterVec
	entitlements    *prometheus.CounterVec
	cacheDrops      prometheus.Counter
}

// NewMetrics registers the collectors with reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Webhook events by provider, normalized kind and outcome",
		}, []string{"provider", "kind", "outcome"}),
		webhookDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhook_duration_seconds",
			Help:      "Time spent processing a webhook delivery",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		checkouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "checkout_sessions_total",
			Help:      "Checkout session requests by result",
		}, []string{"result"}),
		entitlements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entitlement",
			Name:      "cache_lookups_total",
			Help:      "Entitlement snapshot lookups by cache result",
		}, []string{"result"}),
		cacheDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entitlement",
			Name:      "cache_evictions_total",
			Help:      "Snapshots dropped from the in-process entitlement cache, invalidations included",
		}),
	}
}

// ObserveCache counts an entitlement cache hit or miss.
// It matches the signature expected by entitlement.WithCacheObserver.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.entitlements.WithLabelValues(result).Inc()
}

// ObserveCacheEviction counts a snapshot leaving the in-process cache.
// It matches the signature expected by entitlement.MemoryCache.OnEvict.
func (m *Metrics) ObserveCacheEviction(string) {
	if m == nil {
		return
	}
	m.cacheDrops.Inc()
}

func (m *Metrics) observeWebhook(provider string, res *billing.WebhookResult, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.webhookDuration.WithLabelValues(provider).Observe(took.Seconds())

	kind, outcome := "unknown", "error"
	switch {
	case errors.Is(err, billing.ErrUnauthorized):
		outcome = "rejected"
	case errors.Is(err, billing.ErrInvalidRequest):
		outcome = "malformed"
	case err == nil && res != nil:
		kind, outcome = string(res.Kind), string(res.Outcome)
	}
	m.webhooks.WithLabelValues(provider, kind, outcome).Inc()
}

func (m *Metrics) observeCheckout(err error) {
	if m == nil {
		return
	}
	result := "created"
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrUpstreamFailure), errors.Is(err, billing.ErrNoCheckoutURL):
		result = "upstream_failure"
	default:
		result = "rejected"
	}
	m.checkouts.WithLabelValues(result).Inc()
}
