package billing

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps subscriptions, ledger entries and customers in memory.
// It implements SubscriptionStore, LedgerStore and CustomerStore and is
// meant for tests and single-process development setups.
type MemoryStore struct {
	mu            sync.Mutex
	subscriptions map[string]Subscription
	marks         map[string]StatusMark
	ledger        map[string]LedgerEntry
	customers     map[string]Customer
	now           func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[string]Subscription),
		marks:         make(map[string]StatusMark),
		ledger:        make(map[string]LedgerEntry),
		customers:     make(map[string]Customer),
		now:           time.Now,
	}
}

// Get implements SubscriptionStore.
func (s *MemoryStore) Get(ctx context.Context, workspaceID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[workspaceID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

// ListByAccount implements SubscriptionStore.
func (s *MemoryStore) ListByAccount(ctx context.Context, accountID string) ([]*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Subscription
	for _, sub := range s.subscriptions {
		if sub.AccountID == accountID {
			sub := sub
			out = append(out, &sub)
		}
	}
	slices.SortFunc(out, func(a, b *Subscription) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// Upsert implements SubscriptionStore.
func (s *MemoryStore) Upsert(ctx context.Context, sub Subscription) (*Subscription, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *Subscription
	if cur, ok := s.subscriptions[sub.WorkspaceID]; ok {
		current = &cur
	}
	var mark *StatusMark
	if m, ok := s.marks[sub.ExternalSubscriptionID]; ok && sub.ExternalSubscriptionID != "" {
		mark = &m
	}

	now := s.now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	merged, changed := Merge(current, sub, mark)
	if !changed {
		return &merged, false, nil
	}
	merged.UpdatedAt = now
	s.subscriptions[merged.WorkspaceID] = merged
	return &merged, true, nil
}

// Mark implements SubscriptionStore.
func (s *MemoryStore) Mark(ctx context.Context, m StatusMark) (*Subscription, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.marks[m.ExternalSubscriptionID]; !ok || m.Supersedes(&prev) {
		s.marks[m.ExternalSubscriptionID] = m
	}

	for ws, sub := range s.subscriptions {
		if sub.ExternalSubscriptionID != m.ExternalSubscriptionID {
			continue
		}
		changed := m.Apply(&sub)
		if changed {
			sub.UpdatedAt = s.now().UTC()
			s.subscriptions[ws] = sub
		}
		return &sub, changed, nil
	}
	return nil, false, ErrSubscriptionNotFound
}

// GetPayment implements LedgerStore.
func (s *MemoryStore) GetPayment(ctx context.Context, externalPaymentID string) (*LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.ledger[externalPaymentID]
	if !ok {
		return nil, ErrLedgerEntryNotFound
	}
	return &e, nil
}

// Append implements LedgerStore.
func (s *MemoryStore) Append(ctx context.Context, entry LedgerEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ledger[entry.ExternalPaymentID]; ok {
		return false, nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = s.now().UTC()
	}
	s.ledger[entry.ExternalPaymentID] = entry
	return true, nil
}

// ListPayments implements LedgerStore.
func (s *MemoryStore) ListPayments(ctx context.Context, accountID string) ([]*LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*LedgerEntry
	for _, e := range s.ledger {
		if e.AccountID == accountID {
			e := e
			out = append(out, &e)
		}
	}
	slices.SortFunc(out, func(a, b *LedgerEntry) int {
		return b.RecordedAt.Compare(a.RecordedAt)
	})
	return out, nil
}

// GetByAccount implements CustomerStore.
func (s *MemoryStore) GetByAccount(ctx context.Context, accountID string) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[accountID]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return &c, nil
}

// GetByExternalID implements CustomerStore.
func (s *MemoryStore) GetByExternalID(ctx context.Context, externalCustomerID string) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.customers {
		if c.ExternalCustomerID == externalCustomerID {
			return &c, nil
		}
	}
	return nil, ErrCustomerNotFound
}

// Save implements CustomerStore.
func (s *MemoryStore) Save(ctx context.Context, c Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	s.customers[c.AccountID] = c
	return nil
}
