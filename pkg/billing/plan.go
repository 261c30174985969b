package billing

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Plan describes a catalog entry and the features it unlocks.
// PriceRef and OneTimePriceRef are the processor's price identifiers for the
// recurring and the one-time variant of the plan; either may be empty.
type Plan struct {
	ID              string       `json:"id" yaml:"id"`
	Name            string       `json:"name" yaml:"name"`
	DisplayName     string       `json:"display_name" yaml:"display_name"`
	Price           Money        `json:"price" yaml:"price"`
	OneTimePrice    Money        `json:"one_time_price" yaml:"one_time_price"`
	PriceRef        string       `json:"price_ref,omitempty" yaml:"price_ref"`
	OneTimePriceRef string       `json:"one_time_price_ref,omitempty" yaml:"one_time_price_ref"`
	Features        []FeatureKey `json:"features" yaml:"features"`
	Default         bool         `json:"default,omitempty" yaml:"default"`
}

// HasFeature reports whether the plan unlocks the feature.
func (p Plan) HasFeature(f FeatureKey) bool {
	return slices.Contains(p.Features, f)
}

// PriceFor returns the price reference and amount for the given billing type.
func (p Plan) PriceFor(b BillingType) (string, Money) {
	if b == BillingOneTime {
		return p.OneTimePriceRef, p.OneTimePrice
	}
	return p.PriceRef, p.Price
}

func (p Plan) clone() Plan {
	p.Features = slices.Clone(p.Features)
	return p
}

// DefaultPlanID is the id of the plan every workspace without an active
// subscription falls back to.
const DefaultPlanID = "basic"

// DefaultPlans returns the built-in catalog used when no plan file is configured.
func DefaultPlans() []Plan {
	basic := []FeatureKey{
		FeatureGuestsManagement,
		FeatureBudgetManagement,
		FeatureTimelineManagement,
	}
	pro := append(slices.Clone(basic),
		FeatureVendorManagement,
		FeatureSeatingChart,
		FeatureRSVPTracking,
		FeatureEventWebsite,
		FeatureBulkImport,
		FeatureExport,
	)
	premium := append(slices.Clone(pro),
		FeaturePhotoGallery,
		FeatureCollaborators,
		FeatureCustomDomain,
	)

	return []Plan{
		{
			ID:          DefaultPlanID,
			Name:        "Basic",
			DisplayName: "Basic planner",
			Features:    basic,
			Default:     true,
		},
		{
			ID:              "pro",
			Name:            "Pro",
			DisplayName:     "Pro planner",
			Price:           Money{Amount: 1200, Currency: "usd"},
			OneTimePrice:    Money{Amount: 9900, Currency: "usd"},
			PriceRef:        "price_pro_monthly",
			OneTimePriceRef: "price_pro_lifetime",
			Features:        pro,
		},
		{
			ID:              "premium",
			Name:            "Premium",
			DisplayName:     "Premium planner",
			Price:           Money{Amount: 2400, Currency: "usd"},
			OneTimePrice:    Money{Amount: 19900, Currency: "usd"},
			PriceRef:        "price_premium_monthly",
			OneTimePriceRef: "price_premium_lifetime",
			Features:        premium,
		},
	}
}

type priceRef struct {
	planID      string
	billingType BillingType
}

// Catalog is the validated, read-only set of plans.
type Catalog struct {
	plans     map[string]Plan
	order     []string
	prices    map[string]priceRef
	defaultID string
}

// NewCatalog validates the plans and builds a catalog.
// The default plan is defaultID when set, otherwise the single plan flagged Default.
func NewCatalog(plans []Plan, defaultID string) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, errors.Join(ErrInvalidPlanConfiguration, errors.New("at least one plan is required"))
	}

	c := &Catalog{
		plans:  make(map[string]Plan, len(plans)),
		order:  make([]string, 0, len(plans)),
		prices: make(map[string]priceRef, len(plans)*2),
	}

	var flagged []string
	for _, p := range plans {
		if p.ID == "" {
			return nil, errors.Join(ErrInvalidPlanConfiguration, errors.New("plan id is required"))
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("duplicate plan id %q", p.ID))
		}
		for _, f := range p.Features {
			if f == "" {
				return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %q has an empty feature key", p.ID))
			}
		}
		for _, ref := range []priceRef{{p.ID, BillingMonthly}, {p.ID, BillingOneTime}} {
			key, _ := p.PriceFor(ref.billingType)
			if key == "" {
				continue
			}
			if other, dup := c.prices[key]; dup {
				return nil, errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("price %q is used by plans %q and %q", key, other.planID, p.ID))
			}
			c.prices[key] = ref
		}
		if p.Default {
			flagged = append(flagged, p.ID)
		}
		c.plans[p.ID] = p.clone()
		c.order = append(c.order, p.ID)
	}

	switch {
	case defaultID != "":
		if _, ok := c.plans[defaultID]; !ok {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("default plan %q is not in the catalog", defaultID))
		}
		c.defaultID = defaultID
	case len(flagged) == 1:
		c.defaultID = flagged[0]
	case len(flagged) == 0:
		if _, ok := c.plans[DefaultPlanID]; !ok {
			return nil, errors.Join(ErrInvalidPlanConfiguration, errors.New("no default plan configured"))
		}
		c.defaultID = DefaultPlanID
	default:
		sort.Strings(flagged)
		return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("multiple default plans: %v", flagged))
	}

	return c, nil
}

// Plan returns the plan with the given id.
func (c *Catalog) Plan(id string) (Plan, bool) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, false
	}
	return p.clone(), true
}

// Default returns the fallback plan.
func (c *Catalog) Default() Plan {
	return c.plans[c.defaultID].clone()
}

// ByPriceRef resolves a processor price reference to its plan and billing type.
func (c *Catalog) ByPriceRef(ref string) (Plan, BillingType, bool) {
	pr, ok := c.prices[ref]
	if !ok {
		return Plan{}, "", false
	}
	return c.plans[pr.planID].clone(), pr.billingType, true
}

// Plans returns all plans in declaration order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id].clone())
	}
	return out
}
