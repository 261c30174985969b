package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vowbill/pkg/billing"
)

type mockProvider struct {
	mock.Mock
	verified bool
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) SignatureHeader() string { return "X-Mock-Signature" }

func (m *mockProvider) VerifiesSignatures() bool { return m.verified }

func (m *mockProvider) FindCustomer(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) CreateCustomer(ctx context.Context, params billing.CustomerParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) CreateCheckoutSession(ctx context.Context, params billing.SessionParams) (*billing.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Session), args.Error(1)
}

func (m *mockProvider) ParseEvent(ctx context.Context, payload []byte, signature string) (*billing.Event, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Hand out a copy so repeated deliveries start from the same event.
	ev := *args.Get(0).(*billing.Event)
	return &ev, args.Error(1)
}

type recordingInvalidator struct {
	mu         sync.Mutex
	workspaces []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, workspaceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workspaces = append(r.workspaces, workspaceID)
}

func (r *recordingInvalidator) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.workspaces...)
}

var baseTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return baseTime.Add(time.Duration(minutes) * time.Minute)
}

func testCatalog(t *testing.T) *billing.Catalog {
	t.Helper()
	c, err := billing.NewCatalog(billing.DefaultPlans(), "")
	require.NoError(t, err)
	return c
}

type fixture struct {
	provider    *mockProvider
	store       *billing.MemoryStore
	invalidator *recordingInvalidator
	svc         *billing.Service
}

func newFixture(t *testing.T, opts ...billing.ServiceOption) *fixture {
	t.Helper()
	f := &fixture{
		provider:    &mockProvider{verified: true},
		store:       billing.NewMemoryStore(),
		invalidator: &recordingInvalidator{},
	}
	opts = append([]billing.ServiceOption{
		billing.WithBaseURL("https://app.example.com"),
		billing.WithInvalidator(f.invalidator),
		billing.WithClock(func() time.Time { return at(1000) }),
	}, opts...)
	f.svc = billing.NewService(f.provider, testCatalog(t), f.store, f.store, f.store, opts...)
	return f
}

// deliver registers ev under payload and runs it through HandleWebhook.
func (f *fixture) deliver(t *testing.T, payload string, ev *billing.Event) *billing.WebhookResult {
	t.Helper()
	f.provider.On("ParseEvent", mock.Anything, []byte(payload), "sig").Return(ev, nil).Maybe()
	res, err := f.svc.HandleWebhook(context.Background(), []byte(payload), "sig")
	require.NoError(t, err)
	return res
}

func checkoutEvent(id string, occurred time.Time, md billing.CheckoutMetadata, subID string) *billing.Event {
	mode := billing.ModeSubscription
	if md.BillingType == billing.BillingOneTime {
		mode = billing.ModeOneTime
	}
	c := &billing.CheckoutCompleted{
		SessionID:      "cs_" + id,
		CustomerID:     "cus_1",
		SubscriptionID: subID,
		Mode:           mode,
		Amount:         billing.Money{Amount: 1200, Currency: "usd"},
		PaymentStatus:  "paid",
		Metadata:       md.Map(),
	}
	if mode == billing.ModeOneTime {
		c.PaymentIntentID = "pi_" + id
	}
	return &billing.Event{
		ID:           id,
		Kind:         billing.EventCheckoutCompleted,
		ProviderType: "checkout.session.completed",
		OccurredAt:   occurred,
		Verified:     true,
		Checkout:     c,
	}
}

func invoiceEvent(id string, kind billing.EventKind, occurred time.Time, subID string) *billing.Event {
	return &billing.Event{
		ID:         "evt_" + id,
		Kind:       kind,
		OccurredAt: occurred,
		Verified:   true,
		Invoice: &billing.InvoiceEvent{
			ID:             id,
			CustomerID:     "cus_1",
			SubscriptionID: subID,
			Amount:         billing.Money{Amount: 1200, Currency: "usd"},
		},
	}
}

func deletedEvent(id string, occurred time.Time, subID string) *billing.Event {
	return &billing.Event{
		ID:           id,
		Kind:         billing.EventSubscriptionDeleted,
		ProviderType: "customer.subscription.deleted",
		OccurredAt:   occurred,
		Verified:     true,
		Subscription: &billing.SubscriptionEvent{ID: subID, CustomerID: "cus_1", Status: "canceled"},
	}
}
