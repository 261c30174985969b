package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/dmitrymomot/vowbill/pkg/logger"
	"github.com/dmitrymomot/vowbill/pkg/validator"
)

// Service creates checkout sessions and reconciles processor webhooks into
// subscription and ledger state.
type Service struct {
	provider      Provider
	catalog       *Catalog
	subscriptions SubscriptionStore
	ledger        LedgerStore
	customers     CustomerStore

	invalidators    []Invalidator
	guard           WorkspaceGuard
	baseURL         *url.URL
	successPath     string
	cancelPath      string
	upstreamTimeout time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// NewService creates a Service.
// Panics if any dependency is nil to fail fast during initialization.
func NewService(
	provider Provider,
	catalog *Catalog,
	subscriptions SubscriptionStore,
	ledger LedgerStore,
	customers CustomerStore,
	opts ...ServiceOption,
) *Service {
	if provider == nil {
		panic("billing: Provider is required")
	}
	if catalog == nil {
		panic("billing: Catalog is required")
	}
	if subscriptions == nil {
		panic("billing: SubscriptionStore is required")
	}
	if ledger == nil {
		panic("billing: LedgerStore is required")
	}
	if customers == nil {
		panic("billing: CustomerStore is required")
	}

	s := &Service{
		provider:        provider,
		catalog:         catalog,
		subscriptions:   subscriptions,
		ledger:          ledger,
		customers:       customers,
		successPath:     "/billing/success",
		cancelPath:      "/billing/cancel",
		upstreamTimeout: 15 * time.Second,
		logger:          slog.New(slog.DiscardHandler),
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if !provider.VerifiesSignatures() {
		s.logger.Warn("webhook signature verification is disabled, events are accepted unverified",
			logger.Provider(provider.Name()))
	}

	return s
}

// Provider returns the configured payment provider.
func (s *Service) Provider() Provider {
	return s.provider
}

// Catalog returns the plan catalog.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Subscription returns the stored subscription of a workspace.
// Returns ErrSubscriptionNotFound if none exists.
func (s *Service) Subscription(ctx context.Context, workspaceID string) (*Subscription, error) {
	return s.subscriptions.Get(ctx, workspaceID)
}

// MaxPaymentsLimit caps PaymentFilter.Limit.
const MaxPaymentsLimit = 100

// PaymentFilter narrows an account's payment history. Zero values disable
// the filter.
type PaymentFilter struct {
	WorkspaceID string
	Limit       int
}

func (f PaymentFilter) validate() error {
	err := validator.Apply(
		validator.MaxLen("workspace_id", f.WorkspaceID, maxWorkspaceIDLen),
		validator.Range("limit", f.Limit, 0, MaxPaymentsLimit),
	)
	if err != nil {
		return errors.Join(ErrInvalidRequest, ErrInvalidFilter, err)
	}
	return nil
}

// Payments returns the ledger entries of an account, newest first.
func (s *Service) Payments(ctx context.Context, accountID string, filter PaymentFilter) ([]*LedgerEntry, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListPayments(ctx, accountID)
	if err != nil {
		return nil, errors.Join(ErrUpstreamFailure, fmt.Errorf("list payments: %w", err))
	}
	if filter.WorkspaceID != "" {
		entries = slices.DeleteFunc(entries, func(e *LedgerEntry) bool {
			return e.WorkspaceID != filter.WorkspaceID
		})
	}
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

func (s *Service) invalidate(ctx context.Context, workspaceID string) {
	if workspaceID == "" {
		return
	}
	for _, inv := range s.invalidators {
		inv.Invalidate(ctx, workspaceID)
	}
}

func (s *Service) withUpstreamTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.upstreamTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.upstreamTimeout)
}
