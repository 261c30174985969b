package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds Stripe credentials.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// StripeProvider implements Provider on top of Stripe Checkout.
type StripeProvider struct {
	webhookSecret string

	searchCustomers func(params *stripe.CustomerSearchParams) *customer.SearchIter
	createCustomer  func(params *stripe.CustomerParams) (*stripe.Customer, error)
	createSession   func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripeProvider configures the Stripe client.
// An empty webhook secret leaves the provider in unverified mode.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, ErrMissingAPIKey
	}
	stripe.Key = strings.TrimSpace(cfg.SecretKey)

	return &StripeProvider{
		webhookSecret:   strings.TrimSpace(cfg.WebhookSecret),
		searchCustomers: customer.Search,
		createCustomer:  customer.New,
		createSession:   stripesession.New,
	}, nil
}

// NewStripeWebhookVerifier returns a provider that can only parse webhooks.
// Used by tools and tests that never talk to the Stripe API.
func NewStripeWebhookVerifier(webhookSecret string) *StripeProvider {
	return &StripeProvider{webhookSecret: strings.TrimSpace(webhookSecret)}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) SignatureHeader() string { return "Stripe-Signature" }

func (p *StripeProvider) VerifiesSignatures() bool { return p.webhookSecret != "" }

// FindCustomer searches Stripe customers by email.
func (p *StripeProvider) FindCustomer(ctx context.Context, email string) (string, error) {
	if p.searchCustomers == nil {
		return "", ErrMissingAPIKey
	}
	params := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   fmt.Sprintf("email:'%s'", escapeSearchValue(email)),
			Limit:   stripe.Int64(1),
		},
	}
	iter := p.searchCustomers(params)
	for iter.Next() {
		if c := iter.Customer(); c != nil && !c.Deleted {
			return c.ID, nil
		}
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("search stripe customers: %w", err)
	}
	return "", ErrCustomerNotFound
}

// CreateCustomer creates a Stripe customer tagged with the account id.
func (p *StripeProvider) CreateCustomer(ctx context.Context, req CustomerParams) (string, error) {
	if p.createCustomer == nil {
		return "", ErrMissingAPIKey
	}
	params := &stripe.CustomerParams{
		Email:    stripe.String(req.Email),
		Metadata: map[string]string{MetadataAccountID: req.AccountID},
	}
	params.Context = ctx
	params.SetIdempotencyKey("customer-" + req.AccountID)

	c, err := p.createCustomer(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return c.ID, nil
}

// CreateCheckoutSession creates a hosted Stripe Checkout session. Metadata is
// set on the session and copied to the subscription or payment intent.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req SessionParams) (*Session, error) {
	if p.createSession == nil {
		return nil, ErrMissingAPIKey
	}
	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(req.CustomerID),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceRef),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: req.Metadata,
	}
	if id := req.Metadata[MetadataAccountID]; id != "" {
		params.ClientReferenceID = stripe.String(id)
	}

	switch req.Mode {
	case ModeOneTime:
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		}
	default:
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		}
	}
	params.Context = ctx

	sess, err := p.createSession(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe checkout session: %w", err)
	}

	out := &Session{ID: sess.ID, URL: sess.URL}
	if sess.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	}
	return out, nil
}

// ParseEvent verifies the Stripe-Signature header and normalizes the event.
func (p *StripeProvider) ParseEvent(ctx context.Context, payload []byte, signature string) (*Event, error) {
	if p.webhookSecret != "" {
		if strings.TrimSpace(signature) == "" {
			return nil, errors.Join(ErrUnauthorized, ErrWebhookVerificationFailed)
		}
		if err := webhook.ValidatePayload(payload, signature, p.webhookSecret); err != nil {
			return nil, errors.Join(ErrUnauthorized, ErrWebhookVerificationFailed, err)
		}
	}

	var se stripe.Event
	if err := json.Unmarshal(payload, &se); err != nil {
		return nil, errors.Join(ErrInvalidRequest, ErrInvalidPayload, err)
	}
	if se.ID == "" || se.Type == "" {
		return nil, errors.Join(ErrInvalidRequest, ErrInvalidPayload)
	}

	event := &Event{
		ID:           se.ID,
		Kind:         EventUnknown,
		ProviderType: string(se.Type),
		Verified:     p.webhookSecret != "",
	}
	if se.Created > 0 {
		event.OccurredAt = time.Unix(se.Created, 0).UTC()
	}

	var raw json.RawMessage
	if se.Data != nil {
		raw = se.Data.Raw
	}
	if err := decodeStripeObject(event, raw); err != nil {
		return nil, errors.Join(ErrInvalidRequest, ErrInvalidPayload, err)
	}
	return event, nil
}

func decodeStripeObject(event *Event, raw json.RawMessage) error {
	switch event.ProviderType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var s stripeCheckoutSession
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		mode := ModeSubscription
		if s.Mode == string(stripe.CheckoutSessionModePayment) {
			mode = ModeOneTime
		}
		event.Kind = EventCheckoutCompleted
		event.Checkout = &CheckoutCompleted{
			SessionID:       s.ID,
			CustomerID:      string(s.Customer),
			SubscriptionID:  string(s.Subscription),
			PaymentIntentID: string(s.PaymentIntent),
			Mode:            mode,
			Amount:          Money{Amount: s.AmountTotal, Currency: s.Currency},
			PaymentStatus:   s.PaymentStatus,
			Metadata:        s.Metadata,
		}

	case "invoice.paid", "invoice.payment_failed":
		var inv stripeInvoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		event.Kind = EventInvoicePaid
		amount := inv.AmountPaid
		if event.ProviderType == "invoice.payment_failed" {
			event.Kind = EventInvoicePaymentFailed
			amount = inv.AmountDue
		}
		event.Invoice = &InvoiceEvent{
			ID:             inv.ID,
			CustomerID:     string(inv.Customer),
			SubscriptionID: inv.subscriptionID(),
			Amount:         Money{Amount: amount, Currency: inv.Currency},
			Status:         inv.Status,
		}

	case "customer.subscription.deleted":
		var sub stripeSubscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		event.Kind = EventSubscriptionDeleted
		event.Subscription = &SubscriptionEvent{
			ID:         sub.ID,
			CustomerID: string(sub.Customer),
			Status:     sub.Status,
			Metadata:   sub.Metadata,
		}
	}
	return nil
}

// stripeRef is an id field that Stripe sends either as a plain string or,
// when expanded, as an object with an id.
type stripeRef string

func (r *stripeRef) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = ""
		return nil
	}
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		*r = stripeRef(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*r = stripeRef(obj.ID)
	return nil
}

type stripeCheckoutSession struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	Customer      stripeRef         `json:"customer"`
	Subscription  stripeRef         `json:"subscription"`
	PaymentIntent stripeRef         `json:"payment_intent"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

type stripeInvoice struct {
	ID           string    `json:"id"`
	Customer     stripeRef `json:"customer"`
	Subscription stripeRef `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription stripeRef `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
}

// subscriptionID handles both the legacy top-level field and the
// parent.subscription_details form used by newer API versions.
func (i stripeInvoice) subscriptionID() string {
	if i.Subscription != "" {
		return string(i.Subscription)
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return string(i.Parent.SubscriptionDetails.Subscription)
	}
	return ""
}

type stripeSubscription struct {
	ID       string            `json:"id"`
	Customer stripeRef         `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// escapeSearchValue escapes a value for a quoted Stripe search clause.
func escapeSearchValue(v string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
}
