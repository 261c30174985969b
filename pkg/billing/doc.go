// Package billing implements paid plans for the wedding planner: hosted
// checkout, webhook reconciliation and the persisted subscription and payment
// state that feature entitlements are derived from.
//
// # Architecture
//
//   - Service: checkout initiation and webhook processing
//   - Provider: the external payment processor (StripeProvider, PaddleProvider)
//   - Catalog: validated, read-only plans loaded from a PlanSource
//   - SubscriptionStore: one row per workspace, written through Merge
//   - LedgerStore: append-only payments, unique by external payment id
//   - CustomerStore: account to processor customer mapping
//   - Invalidator: hook fired after every subscription write
//
// MemoryStore implements all three stores for tests and local development.
//
// # Checkout
//
// CreateCheckout resolves the price reference against the catalog, finds or
// creates the processor customer and creates a hosted session. The session
// metadata carries account_id, workspace_id, plan_id and billing_type; the
// processor echoes it back on completion and it is the only link between a
// payment and a workspace.
//
//	svc := billing.NewService(provider, catalog, store, store, store,
//		billing.WithBaseURL("https://app.example.com"),
//		billing.WithInvalidator(resolver),
//	)
//	res, err := svc.CreateCheckout(ctx, billing.CheckoutRequest{
//		Account:     billing.Account{ID: userID, Email: email, EmailVerified: true},
//		PriceRef:    "price_pro_monthly",
//		Mode:        billing.ModeSubscription,
//		WorkspaceID: workspaceID,
//	})
//
// # Webhooks
//
// HandleWebhook verifies the signature, normalizes the event and applies it:
//
//   - checkout completed: ledger entry, then the workspace subscription becomes active
//   - invoice paid: ledger entry, status unchanged
//   - invoice payment failed: active monthly subscriptions become past_due
//   - subscription deleted: the subscription becomes cancelled (or expired)
//
// Processors deliver at least once and in any order. Ledger writes are keyed
// by the external payment id and subscription writes go through Merge and
// StatusMark, so duplicates are no-ops and the final state does not depend on
// delivery order. Events that cannot be correlated are acknowledged and
// reported as OutcomeUnresolved; only signature failures and persistence
// errors are returned to the caller.
//
// # Errors
//
// Sentinel errors such as ErrInvalidRequest, ErrUnauthorized or
// ErrUpstreamFailure are joined with the underlying cause, so callers branch
// with errors.Is and still log the detail.
package billing
