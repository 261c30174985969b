package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/vowbill/pkg/billing"
)

const stripeSecret = "whsec_test_secret"

func signStripe(t *testing.T, payload, secret string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Header
}

const stripeCheckoutPayload = `{
  "id": "evt_checkout_1",
  "object": "event",
  "type": "checkout.session.completed",
  "created": 1780315200,
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "mode": "subscription",
      "customer": "cus_1",
      "subscription": {"id": "sub_1", "object": "subscription"},
      "payment_intent": null,
      "payment_status": "paid",
      "amount_total": 1200,
      "currency": "usd",
      "metadata": {
        "account_id": "acc_1",
        "workspace_id": "W1",
        "plan_id": "pro",
        "billing_type": "monthly"
      }
    }
  }
}`

const stripeInvoicePayload = `{
  "id": "evt_invoice_1",
  "object": "event",
  "type": "invoice.payment_failed",
  "created": 1780315260,
  "data": {
    "object": {
      "id": "in_1",
      "object": "invoice",
      "customer": "cus_1",
      "parent": {"subscription_details": {"subscription": "sub_1"}},
      "amount_paid": 0,
      "amount_due": 1200,
      "currency": "usd",
      "status": "open"
    }
  }
}`

func TestStripeProvider_ParseEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("checkout session completed", func(t *testing.T) {
		t.Parallel()
		p := billing.NewStripeWebhookVerifier(stripeSecret)
		require.True(t, p.VerifiesSignatures())

		ev, err := p.ParseEvent(ctx, []byte(stripeCheckoutPayload), signStripe(t, stripeCheckoutPayload, stripeSecret))
		require.NoError(t, err)
		assert.Equal(t, "evt_checkout_1", ev.ID)
		assert.Equal(t, billing.EventCheckoutCompleted, ev.Kind)
		assert.True(t, ev.Verified)
		assert.Equal(t, time.Unix(1780315200, 0).UTC(), ev.OccurredAt)

		require.NotNil(t, ev.Checkout)
		assert.Equal(t, "cs_test_1", ev.Checkout.SessionID)
		assert.Equal(t, "cus_1", ev.Checkout.CustomerID)
		assert.Equal(t, "sub_1", ev.Checkout.SubscriptionID)
		assert.Equal(t, "sub_1", ev.Checkout.PaymentID())
		assert.Equal(t, billing.ModeSubscription, ev.Checkout.Mode)
		assert.Equal(t, billing.Money{Amount: 1200, Currency: "usd"}, ev.Checkout.Amount)
		assert.True(t, ev.Checkout.IsPaid())

		md := billing.ParseCheckoutMetadata(ev.Checkout.Metadata)
		assert.Equal(t, "W1", md.WorkspaceID)
		assert.Equal(t, billing.BillingMonthly, md.BillingType)
	})

	t.Run("invoice with parent subscription details", func(t *testing.T) {
		t.Parallel()
		p := billing.NewStripeWebhookVerifier(stripeSecret)

		ev, err := p.ParseEvent(ctx, []byte(stripeInvoicePayload), signStripe(t, stripeInvoicePayload, stripeSecret))
		require.NoError(t, err)
		assert.Equal(t, billing.EventInvoicePaymentFailed, ev.Kind)
		require.NotNil(t, ev.Invoice)
		assert.Equal(t, "in_1", ev.Invoice.ID)
		assert.Equal(t, "sub_1", ev.Invoice.SubscriptionID)
		assert.Equal(t, int64(1200), ev.Invoice.Amount.Amount)
	})

	t.Run("subscription deleted", func(t *testing.T) {
		t.Parallel()
		payload := `{"id":"evt_del","object":"event","type":"customer.subscription.deleted","created":1780315300,
			"data":{"object":{"id":"sub_1","object":"subscription","customer":"cus_1","status":"canceled"}}}`
		p := billing.NewStripeWebhookVerifier(stripeSecret)

		ev, err := p.ParseEvent(ctx, []byte(payload), signStripe(t, payload, stripeSecret))
		require.NoError(t, err)
		assert.Equal(t, billing.EventSubscriptionDeleted, ev.Kind)
		require.NotNil(t, ev.Subscription)
		assert.Equal(t, "sub_1", ev.Subscription.ID)
		assert.Equal(t, "canceled", ev.Subscription.Status)
	})

	t.Run("unhandled type is unknown", func(t *testing.T) {
		t.Parallel()
		payload := `{"id":"evt_x","object":"event","type":"customer.updated","created":1780315300,"data":{"object":{"id":"cus_1"}}}`
		p := billing.NewStripeWebhookVerifier(stripeSecret)

		ev, err := p.ParseEvent(ctx, []byte(payload), signStripe(t, payload, stripeSecret))
		require.NoError(t, err)
		assert.Equal(t, billing.EventUnknown, ev.Kind)
		assert.Equal(t, "customer.updated", ev.ProviderType)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		p := billing.NewStripeWebhookVerifier(stripeSecret)

		_, err := p.ParseEvent(ctx, []byte(stripeCheckoutPayload), signStripe(t, stripeCheckoutPayload, "whsec_other"))
		assert.ErrorIs(t, err, billing.ErrUnauthorized)
		assert.ErrorIs(t, err, billing.ErrWebhookVerificationFailed)
	})

	t.Run("tampered payload", func(t *testing.T) {
		t.Parallel()
		p := billing.NewStripeWebhookVerifier(stripeSecret)
		header := signStripe(t, stripeCheckoutPayload, stripeSecret)

		_, err := p.ParseEvent(ctx, []byte(stripeInvoicePayload), header)
		assert.ErrorIs(t, err, billing.ErrUnauthorized)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		p := billing.NewStripeWebhookVerifier(stripeSecret)

		_, err := p.ParseEvent(ctx, []byte(stripeCheckoutPayload), "")
		assert.ErrorIs(t, err, billing.ErrUnauthorized)
	})

	t.Run("unverified mode accepts unsigned events", func(t *testing.T) {
		t.Parallel()
		p := billing.NewStripeWebhookVerifier("")
		require.False(t, p.VerifiesSignatures())

		ev, err := p.ParseEvent(ctx, []byte(stripeCheckoutPayload), "")
		require.NoError(t, err)
		assert.False(t, ev.Verified)
		assert.Equal(t, billing.EventCheckoutCompleted, ev.Kind)
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()
		p := billing.NewStripeWebhookVerifier("")

		_, err := p.ParseEvent(ctx, []byte(`{"id":`), "")
		assert.ErrorIs(t, err, billing.ErrInvalidRequest)
	})
}

func TestNewStripeProvider(t *testing.T) {
	t.Parallel()

	_, err := billing.NewStripeProvider(billing.StripeConfig{})
	assert.ErrorIs(t, err, billing.ErrMissingAPIKey)

	p := billing.NewStripeWebhookVerifier(stripeSecret)
	assert.Equal(t, "stripe", p.Name())
	assert.Equal(t, "Stripe-Signature", p.SignatureHeader())

	_, err = p.FindCustomer(context.Background(), "couple@example.com")
	assert.ErrorIs(t, err, billing.ErrMissingAPIKey)
}
