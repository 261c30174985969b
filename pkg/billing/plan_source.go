package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// PlanSource defines how plans are loaded into the catalog.
type PlanSource interface {
	Load(ctx context.Context) ([]Plan, error)
}

type inMemSource struct {
	mu    sync.RWMutex
	plans []Plan
}

// NewInMemSource returns a PlanSource holding a deep copy of the given plans.
// Panics if no plans are provided.
func NewInMemSource(plans ...Plan) PlanSource {
	if len(plans) == 0 {
		panic("billing: at least one plan is required")
	}
	cp := make([]Plan, 0, len(plans))
	for _, p := range plans {
		cp = append(cp, p.clone())
	}
	return &inMemSource{plans: cp}
}

// Load returns a copy of the plans.
func (s *inMemSource) Load(ctx context.Context) ([]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p.clone())
	}
	return out, nil
}

type planFile struct {
	Default string `yaml:"default"`
	Plans   []Plan `yaml:"plans"`
}

type yamlSource struct {
	path string
}

// NewYAMLSource returns a PlanSource that reads the catalog file at path.
//
// File format:
//
//	default: basic
//	plans:
//	  - id: basic
//	    name: Basic
//	    features: [guests_management, budget_management]
//	  - id: pro
//	    name: Pro
//	    price_ref: price_pro_monthly
//	    price: {amount: 1200, currency: usd}
//	    features: [guests_management, vendor_management]
//
// A top-level default marks the matching plan as the default plan.
func NewYAMLSource(path string) PlanSource {
	return &yamlSource{path: path}
}

// Load reads and decodes the catalog file.
func (s *yamlSource) Load(ctx context.Context) ([]Plan, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	defer f.Close()

	return DecodePlans(f)
}

// DecodePlans decodes a YAML plan catalog.
func DecodePlans(r io.Reader) ([]Plan, error) {
	var pf planFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, fmt.Errorf("decode plan catalog: %w", err))
	}
	if len(pf.Plans) == 0 {
		return nil, errors.Join(ErrFailedToLoadPlans, errors.New("plan catalog is empty"))
	}

	if pf.Default != "" {
		idx := slices.IndexFunc(pf.Plans, func(p Plan) bool { return p.ID == pf.Default })
		if idx < 0 {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("default plan %q is not in the catalog", pf.Default))
		}
		for i := range pf.Plans {
			pf.Plans[i].Default = i == idx
		}
	}

	return pf.Plans, nil
}

// LoadCatalog loads plans from src and validates them into a Catalog.
func LoadCatalog(ctx context.Context, src PlanSource, defaultID string) (*Catalog, error) {
	if src == nil {
		panic("billing: PlanSource is required")
	}
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return NewCatalog(plans, defaultID)
}
