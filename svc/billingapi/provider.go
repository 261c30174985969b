package billingapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrymomot/vowbill/pkg/billing"
)

// NewProvider builds the payment processor named by cfg.Provider.
func NewProvider(cfg Config) (billing.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "stripe":
		p, err := billing.NewStripeProvider(cfg.Stripe)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "paddle":
		p, err := billing.NewPaddleProvider(cfg.Paddle)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", billing.ErrUnknownProvider, cfg.Provider)
	}
}

// LoadCatalog reads the plan catalog from cfg.PlansFile, or uses the built-in
// plans when no file is configured.
func LoadCatalog(ctx context.Context, cfg Config) (*billing.Catalog, error) {
	src := billing.NewInMemSource(billing.DefaultPlans()...)
	if cfg.PlansFile != "" {
		src = billing.NewYAMLSource(cfg.PlansFile)
	}
	return billing.LoadCatalog(ctx, src, cfg.DefaultPlanID)
}
