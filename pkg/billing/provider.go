package billing

import (
	"context"
	"time"
)

// Provider abstracts the external payment processor.
// Implementations exist for Stripe and Paddle.
type Provider interface {
	// Name is the short provider name used in routes, logs and metrics.
	Name() string

	// SignatureHeader is the HTTP header that carries the webhook signature.
	SignatureHeader() string

	// VerifiesSignatures reports whether webhook payloads are verified.
	// It is false when no webhook secret is configured.
	VerifiesSignatures() bool

	// FindCustomer looks up an existing processor customer by email.
	// Returns ErrCustomerNotFound when the processor has none.
	FindCustomer(ctx context.Context, email string) (string, error)

	// CreateCustomer creates a processor customer and returns its id.
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)

	// CreateCheckoutSession creates a hosted checkout session.
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)

	// ParseEvent verifies the payload signature and normalizes the event.
	// Verification failures return ErrUnauthorized.
	ParseEvent(ctx context.Context, payload []byte, signature string) (*Event, error)
}

// CustomerParams describes a customer to create.
type CustomerParams struct {
	AccountID string
	Email     string
}

// SessionParams describes a checkout session to create.
type SessionParams struct {
	CustomerID string
	PriceRef   string
	Mode       CheckoutMode
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// Session is a created checkout session.
type Session struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// EventKind is the normalized webhook event kind.
type EventKind string

const (
	EventCheckoutCompleted    EventKind = "checkout.completed"
	EventInvoicePaid          EventKind = "invoice.paid"
	EventInvoicePaymentFailed EventKind = "invoice.payment_failed"
	EventSubscriptionDeleted  EventKind = "subscription.deleted"
	EventUnknown              EventKind = "unknown"
)

// Event is a verified, provider-independent webhook event.
// Exactly one payload field matching Kind is set.
type Event struct {
	ID           string
	Kind         EventKind
	ProviderType string // event type as named by the processor
	OccurredAt   time.Time
	Verified     bool

	Checkout     *CheckoutCompleted
	Invoice      *InvoiceEvent
	Subscription *SubscriptionEvent
}

// CheckoutCompleted is the payload of a completed checkout.
type CheckoutCompleted struct {
	SessionID       string
	CustomerID      string
	SubscriptionID  string
	PaymentIntentID string
	Mode            CheckoutMode
	Amount          Money
	PaymentStatus   string
	Metadata        map[string]string
}

// PaymentID returns the id that identifies the payment in the ledger:
// the payment intent, else the subscription, else the session.
func (c CheckoutCompleted) PaymentID() string {
	switch {
	case c.PaymentIntentID != "":
		return c.PaymentIntentID
	case c.SubscriptionID != "":
		return c.SubscriptionID
	default:
		return c.SessionID
	}
}

// IsPaid reports whether the checkout collected its payment.
// Asynchronous payment methods complete the session before the money arrives.
func (c CheckoutCompleted) IsPaid() bool {
	switch c.PaymentStatus {
	case "", "paid", "no_payment_required":
		return true
	default:
		return false
	}
}

// InvoiceEvent is the payload of a paid or failed recurring charge.
type InvoiceEvent struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	Amount         Money
	Status         string
}

// SubscriptionEvent is the payload of a subscription lifecycle event.
type SubscriptionEvent struct {
	ID         string
	CustomerID string
	Status     string
	Metadata   map[string]string
}
