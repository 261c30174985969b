package billing

import "context"

// SubscriptionStore persists workspace subscriptions.
// WorkspaceID is the primary key.
type SubscriptionStore interface {
	// Get retrieves the subscription of a workspace.
	// Returns ErrSubscriptionNotFound if the workspace has none.
	Get(ctx context.Context, workspaceID string) (*Subscription, error)

	// ListByAccount returns every subscription row owned by the account.
	ListByAccount(ctx context.Context, accountID string) ([]*Subscription, error)

	// Upsert merges sub into the stored row with Merge, atomically with
	// respect to other writes for the same external subscription.
	// It returns the stored row and whether it changed.
	Upsert(ctx context.Context, sub Subscription) (*Subscription, bool, error)

	// Mark records a status mark and applies it to the row carrying the
	// same external subscription id. The mark is recorded even when no row
	// matches, in which case ErrSubscriptionNotFound is returned.
	Mark(ctx context.Context, m StatusMark) (*Subscription, bool, error)
}

// LedgerStore persists confirmed payments.
type LedgerStore interface {
	// GetPayment returns the entry recorded for an external payment id.
	// Returns ErrLedgerEntryNotFound if none exists.
	GetPayment(ctx context.Context, externalPaymentID string) (*LedgerEntry, error)

	// Append records entry unless its external payment id is already present.
	// It reports whether a new row was written.
	Append(ctx context.Context, entry LedgerEntry) (bool, error)

	// ListPayments returns the account's entries, newest first.
	ListPayments(ctx context.Context, accountID string) ([]*LedgerEntry, error)
}

// CustomerStore persists the account to processor customer mapping.
type CustomerStore interface {
	// GetByAccount returns the mapping for an account.
	// Returns ErrCustomerNotFound if none exists.
	GetByAccount(ctx context.Context, accountID string) (*Customer, error)

	// GetByExternalID returns the mapping for a processor customer id.
	// Returns ErrCustomerNotFound if none exists.
	GetByExternalID(ctx context.Context, externalCustomerID string) (*Customer, error)

	// Save creates or replaces the mapping of c.AccountID.
	Save(ctx context.Context, c Customer) error
}

// Invalidator is notified after every subscription write so derived state,
// such as cached entitlements, can be dropped.
type Invalidator interface {
	Invalidate(ctx context.Context, workspaceID string)
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(ctx context.Context, workspaceID string)

// Invalidate calls f(ctx, workspaceID).
func (f InvalidatorFunc) Invalidate(ctx context.Context, workspaceID string) {
	f(ctx, workspaceID)
}

// WorkspaceGuard decides whether an account may purchase for a workspace.
// A non-nil error rejects the checkout with ErrForbidden.
type WorkspaceGuard func(ctx context.Context, accountID, workspaceID string) error
