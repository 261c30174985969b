package billingapi

import (
	"time"

	"github.com/dmitrymomot/vowbill/pkg/billing"
)

// Config is the environment driven configuration of the billing service.
type Config struct {
	Provider        string        `env:"BILLING_PROVIDER" envDefault:"stripe"` // stripe or paddle
	PlansFile       string        `env:"BILLING_PLANS_FILE"`                   // YAML catalog; built-in plans when empty
	DefaultPlanID   string        `env:"BILLING_DEFAULT_PLAN"`                 // overrides the catalog default flag
	BaseURL         string        `env:"APP_BASE_URL,required"`                // origin of checkout return URLs
	SuccessPath     string        `env:"BILLING_SUCCESS_PATH" envDefault:"/billing/success"`
	CancelPath      string        `env:"BILLING_CANCEL_PATH" envDefault:"/billing/cancel"`
	UpstreamTimeout time.Duration `env:"BILLING_UPSTREAM_TIMEOUT" envDefault:"10s"`
	WebhookMaxBytes int64         `env:"BILLING_WEBHOOK_MAX_BYTES" envDefault:"1048576"`

	CheckoutBurst    int           `env:"CHECKOUT_RATE_BURST" envDefault:"5"`   // checkouts an account may start at once
	CheckoutRefill   time.Duration `env:"CHECKOUT_RATE_REFILL" envDefault:"1m"` // one more checkout per period
	TrustedIPHeaders []string      `env:"TRUSTED_IP_HEADERS" envSeparator:","`  // e.g. CF-Connecting-IP,X-Forwarded-For

	JWTSecret string `env:"AUTH_JWT_SECRET,required"`
	JWTIssuer string `env:"AUTH_JWT_ISSUER"`

	EntitlementTTL   time.Duration `env:"ENTITLEMENT_CACHE_TTL" envDefault:"10m"`
	CacheCapacity    int           `env:"ENTITLEMENT_CACHE_CAPACITY" envDefault:"10000"`
	HealthTimeout    time.Duration `env:"HEALTHCHECK_TIMEOUT" envDefault:"3s"`
	MetricsNamespace string        `env:"METRICS_NAMESPACE" envDefault:"vowbill"`

	Stripe billing.StripeConfig
	Paddle billing.PaddleConfig
}
