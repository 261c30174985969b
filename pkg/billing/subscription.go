package billing

import "time"

// Subscription is the billing state of a single workspace.
// WorkspaceID is the primary key: each workspace has at most one row, so at
// most one active subscription.
type Subscription struct {
	WorkspaceID            string      `json:"workspace_id"`
	AccountID              string      `json:"account_id"`
	PlanID                 string      `json:"plan_id"`
	ExternalSubscriptionID string      `json:"external_subscription_id,omitempty"`
	ExternalCustomerID     string      `json:"external_customer_id,omitempty"`
	BillingType            BillingType `json:"billing_type"`
	Status                 Status      `json:"status"`
	PaidAmount             Money       `json:"paid_amount"`
	ActivatedAt            *time.Time  `json:"activated_at,omitempty"`
	CancelledAt            *time.Time  `json:"cancelled_at,omitempty"`
	// StatusChangedAt is the processor event time of the last status change.
	// It orders competing writes.
	StatusChangedAt time.Time `json:"status_changed_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsActive reports whether the subscription currently grants its plan.
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

// StatusMark is a processor-initiated status change of an external
// subscription: past_due after a failed renewal, cancelled or expired after
// deletion. Stores keep the mark even when no workspace row matches yet, so a
// late checkout completion for the same subscription still lands in the
// right state.
type StatusMark struct {
	ExternalSubscriptionID string
	Status                 Status
	At                     time.Time
}

// Supersedes reports whether m replaces prev as the recorded mark.
// Terminal marks win over non-terminal ones; otherwise the later one wins.
func (m StatusMark) Supersedes(prev *StatusMark) bool {
	if prev == nil {
		return true
	}
	if m.Status.IsTerminal() != prev.Status.IsTerminal() {
		return m.Status.IsTerminal()
	}
	return m.At.After(prev.At)
}

// Apply moves sub according to the mark and reports whether sub changed.
// Terminal marks always end a live subscription. A past_due mark only
// moves an active monthly subscription whose status is not newer than the mark.
func (m StatusMark) Apply(sub *Subscription) bool {
	if sub == nil || sub.ExternalSubscriptionID == "" || sub.ExternalSubscriptionID != m.ExternalSubscriptionID {
		return false
	}

	if m.Status.IsTerminal() {
		if sub.Status.IsTerminal() {
			return false
		}
		sub.Status = m.Status
		at := m.At
		sub.CancelledAt = &at
		if m.At.After(sub.StatusChangedAt) {
			sub.StatusChangedAt = m.At
		}
		return true
	}

	if m.Status != StatusPastDue || sub.Status != StatusActive || sub.BillingType != BillingMonthly {
		return false
	}
	if sub.StatusChangedAt.After(m.At) {
		return false
	}
	sub.Status = StatusPastDue
	sub.StatusChangedAt = m.At
	return true
}

// Merge folds an incoming subscription write into the current row of the same
// workspace. It returns the row to persist and whether it differs from current.
//
// Rules, in order:
//   - a recorded mark for the incoming external subscription is applied first
//   - for the same external subscription, a terminal row is never reactivated
//     and a write whose StatusChangedAt is older than the row is dropped
//   - for a different purchase (another external subscription or a one-time
//     payment), the later purchase wins whatever the status of either side;
//     see newerPurchase
//   - the winning write replaces the row, keeping CreatedAt and the first
//     ActivatedAt of the same external subscription
//
// Every store applies Merge under its own atomicity, which makes the delivery
// order of webhook events irrelevant to the final state.
func Merge(current *Subscription, incoming Subscription, mark *StatusMark) (Subscription, bool) {
	if mark != nil {
		mark.Apply(&incoming)
	}

	if current == nil {
		return incoming, true
	}

	sameExternal := incoming.ExternalSubscriptionID != "" &&
		current.ExternalSubscriptionID == incoming.ExternalSubscriptionID

	if sameExternal {
		if current.Status.IsTerminal() && !incoming.Status.IsTerminal() {
			return *current, false
		}
		if current.StatusChangedAt.After(incoming.StatusChangedAt) {
			return *current, false
		}
	} else if newerPurchase(*current, incoming) {
		return *current, false
	}

	merged := incoming
	merged.WorkspaceID = current.WorkspaceID
	if !current.CreatedAt.IsZero() {
		merged.CreatedAt = current.CreatedAt
	}
	if sameExternal && current.ActivatedAt != nil &&
		(merged.ActivatedAt == nil || current.ActivatedAt.Before(*merged.ActivatedAt)) {
		merged.ActivatedAt = current.ActivatedAt
	}
	if sameExternal && merged.Status.IsTerminal() && merged.CancelledAt == nil {
		merged.CancelledAt = current.CancelledAt
	}

	if sameState(*current, merged) {
		return *current, false
	}
	return merged, true
}

// newerPurchase reports whether a was purchased after b. Purchases are
// ordered by ActivatedAt (StatusChangedAt when unset); ties fall back to the
// external subscription id, plan and amount so that every delivery order
// picks the same winner. Identical purchases are not newer than each other.
func newerPurchase(a, b Subscription) bool {
	at, bt := purchasedAt(a), purchasedAt(b)
	switch {
	case !at.Equal(bt):
		return at.After(bt)
	case a.ExternalSubscriptionID != b.ExternalSubscriptionID:
		return a.ExternalSubscriptionID > b.ExternalSubscriptionID
	case a.PlanID != b.PlanID:
		return a.PlanID > b.PlanID
	default:
		return a.PaidAmount.Amount > b.PaidAmount.Amount
	}
}

func purchasedAt(s Subscription) time.Time {
	if s.ActivatedAt != nil {
		return *s.ActivatedAt
	}
	return s.StatusChangedAt
}

// sameState compares everything except bookkeeping timestamps.
func sameState(a, b Subscription) bool {
	return a.AccountID == b.AccountID &&
		a.PlanID == b.PlanID &&
		a.ExternalSubscriptionID == b.ExternalSubscriptionID &&
		a.ExternalCustomerID == b.ExternalCustomerID &&
		a.BillingType == b.BillingType &&
		a.Status == b.Status &&
		a.PaidAmount == b.PaidAmount &&
		a.StatusChangedAt.Equal(b.StatusChangedAt) &&
		equalTime(a.ActivatedAt, b.ActivatedAt) &&
		equalTime(a.CancelledAt, b.CancelledAt)
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
