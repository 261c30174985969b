package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/vowbill/pkg/logger"
)

// Outcome describes what processing a webhook event did.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeIgnored         Outcome = "ignored"
	OutcomeUnresolved      Outcome = "unresolved"
	OutcomeAwaitingPayment Outcome = "awaiting_payment"
)

// WebhookResult summarizes a processed webhook event.
type WebhookResult struct {
	EventID      string
	Kind         EventKind
	ProviderType string
	Outcome      Outcome
	WorkspaceIDs []string
	// Reason is set for ignored and unresolved outcomes.
	Reason error
}

// HandleWebhook verifies, normalizes and applies a processor event.
//
// Signature failures return ErrUnauthorized before anything is written.
// Unknown event types and events that cannot be correlated to an account or
// workspace are acknowledged with a nil error so the processor stops
// retrying. Persistence failures are returned so the processor retries.
// Every handler is idempotent: redelivery of the same event converges to
// the same state.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.provider.ParseEvent(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.logger.WarnContext(ctx, "webhook signature rejected",
				logger.Provider(s.provider.Name()),
				logger.Error(err),
			)
			return nil, err
		}
		if !errors.Is(err, ErrInvalidRequest) {
			err = errors.Join(ErrInvalidRequest, err)
		}
		return nil, err
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}

	// Records written while the event is applied, store and cache
	// invalidation included, carry the delivery attributes.
	ctx = logger.WithBillingAttrs(ctx,
		logger.Provider(s.provider.Name()),
		logger.EventID(event.ID),
		logger.EventType(event.ProviderType),
	)
	if !event.Verified {
		s.logger.WarnContext(ctx, "processing unverified webhook event")
	}

	var res *WebhookResult
	switch event.Kind {
	case EventCheckoutCompleted:
		res, err = s.applyCheckoutCompleted(ctx, event)
	case EventInvoicePaid:
		res, err = s.applyInvoicePaid(ctx, event)
	case EventInvoicePaymentFailed:
		res, err = s.applyInvoicePaymentFailed(ctx, event)
	case EventSubscriptionDeleted:
		res, err = s.applySubscriptionDeleted(ctx, event)
	default:
		res = &WebhookResult{Outcome: OutcomeIgnored}
		s.logger.DebugContext(ctx, "webhook event type not handled")
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to apply webhook event", logger.Error(err))
		return nil, err
	}

	res.EventID = event.ID
	res.Kind = event.Kind
	res.ProviderType = event.ProviderType

	if res.Outcome == OutcomeUnresolved {
		s.logger.WarnContext(ctx, "webhook event could not be correlated", logger.Error(res.Reason))
	} else {
		s.logger.InfoContext(ctx, "webhook event processed", slog.String("outcome", string(res.Outcome)))
	}

	return res, nil
}

func unresolved(format string, args ...any) *WebhookResult {
	return &WebhookResult{
		Outcome: OutcomeUnresolved,
		Reason:  fmt.Errorf("%w: "+format, append([]any{ErrUnresolvedCorrelation}, args...)...),
	}
}

// applyCheckoutCompleted records the payment and, when the session was
// bound to a workspace, activates its subscription. Both steps run on every
// delivery so a retry after a partial failure completes the work.
func (s *Service) applyCheckoutCompleted(ctx context.Context, event *Event) (*WebhookResult, error) {
	c := event.Checkout
	if c == nil {
		return nil, errors.Join(ErrInvalidRequest, ErrInvalidPayload)
	}

	md := ParseCheckoutMetadata(c.Metadata)
	if md.AccountID == "" {
		return unresolved("checkout session %s carries no account id", c.SessionID), nil
	}
	if !c.IsPaid() {
		return &WebhookResult{Outcome: OutcomeAwaitingPayment}, nil
	}

	billingType := md.BillingType
	if !billingType.Valid() {
		billingType = c.Mode.BillingType()
	}

	if c.CustomerID != "" {
		if err := s.rememberCustomer(ctx, md.AccountID, c.CustomerID); err != nil {
			return nil, err
		}
	}

	inserted, err := s.record(ctx, LedgerEntry{
		ExternalPaymentID: c.PaymentID(),
		WorkspaceID:       md.WorkspaceID,
		AccountID:         md.AccountID,
		Amount:            c.Amount,
		Status:            PaymentPaid,
		Type:              LedgerTypeFor(billingType),
	})
	if err != nil {
		return nil, err
	}

	outcome := OutcomeApplied
	if !inserted {
		outcome = OutcomeDuplicate
	}

	if md.WorkspaceID == "" {
		return &WebhookResult{Outcome: outcome}, nil
	}

	if md.PlanID == "" {
		s.logger.WarnContext(ctx, "checkout metadata carries no plan id", logger.WorkspaceID(md.WorkspaceID))
	} else if _, ok := s.catalog.Plan(md.PlanID); !ok {
		s.logger.WarnContext(ctx, "checkout references a plan missing from the catalog",
			logger.WorkspaceID(md.WorkspaceID),
			logger.PlanID(md.PlanID),
		)
	}

	activatedAt := event.OccurredAt
	sub := Subscription{
		WorkspaceID:        md.WorkspaceID,
		AccountID:          md.AccountID,
		PlanID:             md.PlanID,
		ExternalCustomerID: c.CustomerID,
		BillingType:        billingType,
		Status:             StatusActive,
		PaidAmount:         c.Amount,
		ActivatedAt:        &activatedAt,
		StatusChangedAt:    event.OccurredAt,
	}
	if billingType == BillingMonthly {
		sub.ExternalSubscriptionID = c.SubscriptionID
	}

	stored, changed, err := s.subscriptions.Upsert(ctx, sub)
	if err != nil {
		return nil, errors.Join(ErrUpstreamFailure, fmt.Errorf("upsert subscription: %w", err))
	}
	s.invalidate(ctx, md.WorkspaceID)

	if changed {
		outcome = OutcomeApplied
		s.logger.InfoContext(ctx, "subscription updated from checkout",
			logger.WorkspaceID(stored.WorkspaceID),
			logger.PlanID(stored.PlanID),
			slog.String("status", string(stored.Status)),
		)
	}

	return &WebhookResult{Outcome: outcome, WorkspaceIDs: []string{md.WorkspaceID}}, nil
}

// applyInvoicePaid records a recurring payment. Status is left untouched:
// recovery from past_due is not derived from invoice events.
func (s *Service) applyInvoicePaid(ctx context.Context, event *Event) (*WebhookResult, error) {
	inv := event.Invoice
	if inv == nil || inv.ID == "" {
		return nil, errors.Join(ErrInvalidRequest, ErrInvalidPayload)
	}

	accountID, res, err := s.accountForCustomer(ctx, inv.CustomerID)
	if res != nil || err != nil {
		return res, err
	}

	var workspaceID string
	if inv.SubscriptionID != "" {
		subs, err := s.subscriptions.ListByAccount(ctx, accountID)
		if err != nil {
			return nil, errors.Join(ErrUpstreamFailure, fmt.Errorf("list subscriptions: %w", err))
		}
		for _, sub := range subs {
			if sub.ExternalSubscriptionID == inv.SubscriptionID {
				workspaceID = sub.WorkspaceID
				break
			}
		}
	}

	inserted, err := s.record(ctx, LedgerEntry{
		ExternalPaymentID: inv.ID,
		WorkspaceID:       workspaceID,
		AccountID:         accountID,
		Amount:            inv.Amount,
		Status:            PaymentPaid,
		Type:              LedgerSubscription,
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		return &WebhookResult{Outcome: OutcomeDuplicate}, nil
	}

	s.logger.DebugContext(ctx, "recurring payment recorded",
		logger.AccountID(accountID),
		logger.PaymentID(inv.ID),
	)

	res = &WebhookResult{Outcome: OutcomeApplied}
	if workspaceID != "" {
		res.WorkspaceIDs = []string{workspaceID}
	}
	return res, nil
}

// applyInvoicePaymentFailed moves the account's active monthly subscriptions
// to past_due. When the invoice names its subscription only that one is
// marked, and the mark is kept for a subscription row that does not exist yet.
func (s *Service) applyInvoicePaymentFailed(ctx context.Context, event *Event) (*WebhookResult, error) {
	inv := event.Invoice
	if inv == nil {
		return nil, errors.Join(ErrInvalidRequest, ErrInvalidPayload)
	}

	var targets []string
	if inv.SubscriptionID != "" {
		targets = []string{inv.SubscriptionID}
	} else {
		accountID, res, err := s.accountForCustomer(ctx, inv.CustomerID)
		if res != nil || err != nil {
			return res, err
		}
		subs, err := s.subscriptions.ListByAccount(ctx, accountID)
		if err != nil {
			return nil, errors.Join(ErrUpstreamFailure, fmt.Errorf("list subscriptions: %w", err))
		}
		for _, sub := range subs {
			if sub.IsActive() && sub.BillingType == BillingMonthly && sub.ExternalSubscriptionID != "" {
				targets = append(targets, sub.ExternalSubscriptionID)
			}
		}
		if len(targets) == 0 {
			return unresolved("account %s has no active monthly subscription", accountID), nil
		}
	}

	res := &WebhookResult{Outcome: OutcomeDuplicate}
	for _, extID := range targets {
		sub, changed, err := s.subscriptions.Mark(ctx, StatusMark{
			ExternalSubscriptionID: extID,
			Status:                 StatusPastDue,
			At:                     event.OccurredAt,
		})
		if errors.Is(err, ErrSubscriptionNotFound) {
			res = unresolved("no workspace subscription for %s yet", extID)
			continue
		}
		if err != nil {
			return nil, errors.Join(ErrUpstreamFailure, fmt.Errorf("mark past due: %w", err))
		}
		s.invalidate(ctx, sub.WorkspaceID)
		res.WorkspaceIDs = append(res.WorkspaceIDs, sub.WorkspaceID)
		if changed {
			res.Outcome = OutcomeApplied
			s.logger.InfoContext(ctx, "subscription past due",
				logger.WorkspaceID(sub.WorkspaceID),
				logger.SubscriptionID(extID),
			)
		}
	}
	return res, nil
}

// applySubscriptionDeleted terminates the subscription. The termination is
// recorded even when no workspace row carries the id yet.
func (s *Service) applySubscriptionDeleted(ctx context.Context, event *Event) (*WebhookResult, error) {
	ev := event.Subscription
	if ev == nil || ev.ID == "" {
		return nil, errors.Join(ErrInvalidRequest, ErrInvalidPayload)
	}

	status := StatusCancelled
	if ev.Status == "incomplete_expired" {
		status = StatusExpired
	}

	sub, changed, err := s.subscriptions.Mark(ctx, StatusMark{
		ExternalSubscriptionID: ev.ID,
		Status:                 status,
		At:                     event.OccurredAt,
	})
	if errors.Is(err, ErrSubscriptionNotFound) {
		return unresolved("no workspace subscription for %s yet", ev.ID), nil
	}
	if err != nil {
		return nil, errors.Join(ErrUpstreamFailure, fmt.Errorf("terminate subscription: %w", err))
	}
	s.invalidate(ctx, sub.WorkspaceID)

	if !changed {
		return &WebhookResult{Outcome: OutcomeDuplicate, WorkspaceIDs: []string{sub.WorkspaceID}}, nil
	}

	s.logger.InfoContext(ctx, "subscription terminated",
		logger.WorkspaceID(sub.WorkspaceID),
		logger.SubscriptionID(ev.ID),
		slog.String("status", string(status)),
	)
	return &WebhookResult{Outcome: OutcomeApplied, WorkspaceIDs: []string{sub.WorkspaceID}}, nil
}

// record appends a ledger entry unless the payment is already present.
func (s *Service) record(ctx context.Context, entry LedgerEntry) (bool, error) {
	if entry.ExternalPaymentID == "" {
		return false, errors.Join(ErrInvalidRequest, ErrInvalidPayload)
	}

	_, err := s.ledger.GetPayment(ctx, entry.ExternalPaymentID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrLedgerEntryNotFound) {
		return false, errors.Join(ErrUpstreamFailure, fmt.Errorf("load ledger entry: %w", err))
	}

	entry.RecordedAt = s.now().UTC()
	inserted, err := s.ledger.Append(ctx, entry)
	if err != nil {
		return false, errors.Join(ErrUpstreamFailure, fmt.Errorf("append ledger entry: %w", err))
	}
	return inserted, nil
}

// accountForCustomer resolves the account of a processor customer. A miss
// yields an unresolved result rather than an error.
func (s *Service) accountForCustomer(ctx context.Context, customerID string) (string, *WebhookResult, error) {
	if customerID == "" {
		return "", unresolved("event carries no customer id"), nil
	}
	c, err := s.customers.GetByExternalID(ctx, customerID)
	if errors.Is(err, ErrCustomerNotFound) {
		return "", unresolved("unknown customer %s", customerID), nil
	}
	if err != nil {
		return "", nil, errors.Join(ErrUpstreamFailure, fmt.Errorf("load customer: %w", err))
	}
	return c.AccountID, nil, nil
}

// rememberCustomer stores the customer mapping echoed by a completed checkout
// when the account has none yet.
func (s *Service) rememberCustomer(ctx context.Context, accountID, customerID string) error {
	_, err := s.customers.GetByAccount(ctx, accountID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return errors.Join(ErrUpstreamFailure, fmt.Errorf("load customer mapping: %w", err))
	}
	if err := s.customers.Save(ctx, Customer{
		AccountID:          accountID,
		ExternalCustomerID: customerID,
		CreatedAt:          s.now().UTC(),
	}); err != nil {
		return errors.Join(ErrUpstreamFailure, fmt.Errorf("save customer mapping: %w", err))
	}
	return nil
}
