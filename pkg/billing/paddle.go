package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider on top of Paddle Billing transactions.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle provider.
// An empty webhook secret leaves the provider in unverified mode.
func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("create paddle client: %w", err)
	}

	p := &PaddleProvider{client: client}
	if cfg.WebhookSecret != "" {
		p.verifier = paddle.NewWebhookVerifier(cfg.WebhookSecret)
	}
	return p, nil
}

// NewPaddleWebhookVerifier returns a provider that can only parse webhooks.
func NewPaddleWebhookVerifier(webhookSecret string) *PaddleProvider {
	p := &PaddleProvider{}
	if webhookSecret != "" {
		p.verifier = paddle.NewWebhookVerifier(webhookSecret)
	}
	return p
}

func (p *PaddleProvider) Name() string { return "paddle" }

func (p *PaddleProvider) SignatureHeader() string { return "Paddle-Signature" }

func (p *PaddleProvider) VerifiesSignatures() bool { return p.verifier != nil }

// FindCustomer lists Paddle customers filtered by email.
func (p *PaddleProvider) FindCustomer(ctx context.Context, email string) (string, error) {
	if p.client == nil {
		return "", ErrMissingAPIKey
	}
	res, err := p.client.CustomersClient.ListCustomers(ctx, &paddle.ListCustomersRequest{
		Email: []string{email},
	})
	if err != nil {
		return "", fmt.Errorf("list paddle customers: %w", err)
	}

	var id string
	err = res.Iter(ctx, func(c *paddle.Customer) (bool, error) {
		id = c.ID
		return false, nil
	})
	if err != nil {
		return "", fmt.Errorf("iterate paddle customers: %w", err)
	}
	if id == "" {
		return "", ErrCustomerNotFound
	}
	return id, nil
}

// CreateCustomer creates a Paddle customer tagged with the account id.
func (p *PaddleProvider) CreateCustomer(ctx context.Context, req CustomerParams) (string, error) {
	if p.client == nil {
		return "", ErrMissingAPIKey
	}
	c, err := p.client.CustomersClient.CreateCustomer(ctx, &paddle.CreateCustomerRequest{
		Email:      req.Email,
		CustomData: paddle.CustomData{MetadataAccountID: req.AccountID},
	})
	if err != nil {
		return "", fmt.Errorf("create paddle customer: %w", err)
	}
	return c.ID, nil
}

// CreateCheckoutSession creates a Paddle transaction whose checkout URL is
// the hosted payment page. Metadata travels as custom data and Paddle copies
// it onto the subscription it creates.
func (p *PaddleProvider) CreateCheckoutSession(ctx context.Context, req SessionParams) (*Session, error) {
	if p.client == nil {
		return nil, ErrMissingAPIKey
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceRef,
		Quantity: 1,
	})

	custom := make(paddle.CustomData, len(req.Metadata))
	for k, v := range req.Metadata {
		custom[k] = v
	}

	txReq := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomerID: paddle.PtrTo(req.CustomerID),
		CustomData: custom,
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(req.SuccessURL)}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, fmt.Errorf("create paddle transaction: %w", err)
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &Session{ID: tx.ID, URL: *tx.Checkout.URL}, nil
}

// ParseEvent verifies the Paddle-Signature header and normalizes the event.
func (p *PaddleProvider) ParseEvent(ctx context.Context, payload []byte, signature string) (*Event, error) {
	if p.verifier != nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build verification request: %w", err)
		}
		req.Header.Set(p.SignatureHeader(), signature)

		ok, err := p.verifier.Verify(req)
		if err != nil || !ok {
			return nil, errors.Join(ErrUnauthorized, ErrWebhookVerificationFailed, err)
		}
	}

	var pe paddleEvent
	if err := json.Unmarshal(payload, &pe); err != nil {
		return nil, errors.Join(ErrInvalidRequest, ErrInvalidPayload, err)
	}
	if pe.EventID == "" || pe.EventType == "" {
		return nil, errors.Join(ErrInvalidRequest, ErrInvalidPayload)
	}

	event := &Event{
		ID:           pe.EventID,
		Kind:         EventUnknown,
		ProviderType: pe.EventType,
		Verified:     p.verifier != nil,
	}
	if t, err := time.Parse(time.RFC3339Nano, pe.OccurredAt); err == nil {
		event.OccurredAt = t.UTC()
	}

	if err := decodePaddleData(event, pe.Data); err != nil {
		return nil, errors.Join(ErrInvalidRequest, ErrInvalidPayload, err)
	}
	return event, nil
}

type paddleEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddleTransaction struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	Origin         string         `json:"origin"`
	CustomerID     string         `json:"customer_id"`
	SubscriptionID string         `json:"subscription_id"`
	CurrencyCode   string         `json:"currency_code"`
	CustomData     map[string]any `json:"custom_data"`
	Details        struct {
		Totals struct {
			GrandTotal string `json:"grand_total"`
		} `json:"totals"`
	} `json:"details"`
}

func (t paddleTransaction) amount() Money {
	n, _ := strconv.ParseInt(t.Details.Totals.GrandTotal, 10, 64)
	return Money{Amount: n, Currency: strings.ToLower(t.CurrencyCode)}
}

type paddleSubscription struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	CustomerID string         `json:"customer_id"`
	CustomData map[string]any `json:"custom_data"`
}

// Renewals are transaction.completed events created by the subscription
// itself rather than by a checkout.
const paddleOriginRecurring = "subscription_recurring"

func decodePaddleData(event *Event, raw json.RawMessage) error {
	switch event.ProviderType {
	case "transaction.completed", "transaction.payment_failed":
		var tx paddleTransaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return fmt.Errorf("decode transaction: %w", err)
		}
		if event.ProviderType == "transaction.payment_failed" {
			event.Kind = EventInvoicePaymentFailed
			event.Invoice = &InvoiceEvent{
				ID:             tx.ID,
				CustomerID:     tx.CustomerID,
				SubscriptionID: tx.SubscriptionID,
				Amount:         tx.amount(),
				Status:         tx.Status,
			}
			return nil
		}
		if tx.Origin == paddleOriginRecurring {
			event.Kind = EventInvoicePaid
			event.Invoice = &InvoiceEvent{
				ID:             tx.ID,
				CustomerID:     tx.CustomerID,
				SubscriptionID: tx.SubscriptionID,
				Amount:         tx.amount(),
				Status:         tx.Status,
			}
			return nil
		}
		mode := ModeOneTime
		if tx.SubscriptionID != "" {
			mode = ModeSubscription
		}
		event.Kind = EventCheckoutCompleted
		event.Checkout = &CheckoutCompleted{
			SessionID:       tx.ID,
			CustomerID:      tx.CustomerID,
			SubscriptionID:  tx.SubscriptionID,
			PaymentIntentID: tx.ID,
			Mode:            mode,
			Amount:          tx.amount(),
			PaymentStatus:   "paid",
			Metadata:        stringMap(tx.CustomData),
		}

	case "subscription.canceled":
		var sub paddleSubscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		event.Kind = EventSubscriptionDeleted
		event.Subscription = &SubscriptionEvent{
			ID:         sub.ID,
			CustomerID: sub.CustomerID,
			Status:     sub.Status,
			Metadata:   stringMap(sub.CustomData),
		}
	}
	return nil
}

func stringMap(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case string:
			out[k] = t
		case nil:
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
