package billing_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vowbill/pkg/billing"
)

const paddleSecret = "pdl_ntfset_test_secret"

func signPaddle(payload, secret string) string {
	ts := fmt.Sprint(time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + ":" + payload))
	return "ts=" + ts + ";h1=" + hex.EncodeToString(mac.Sum(nil))
}

const paddleCheckoutPayload = `{
  "event_id": "evt_01pdl",
  "event_type": "transaction.completed",
  "occurred_at": "2026-06-01T12:01:00.000000Z",
  "data": {
    "id": "txn_01",
    "status": "completed",
    "origin": "web",
    "customer_id": "ctm_01",
    "subscription_id": "sub_01",
    "currency_code": "USD",
    "custom_data": {
      "account_id": "acc_1",
      "workspace_id": "W1",
      "plan_id": "pro",
      "billing_type": "monthly"
    },
    "details": {"totals": {"grand_total": "1200"}}
  }
}`

func TestPaddleProvider_ParseEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("completed checkout transaction", func(t *testing.T) {
		t.Parallel()
		p := billing.NewPaddleWebhookVerifier(paddleSecret)
		require.True(t, p.VerifiesSignatures())

		ev, err := p.ParseEvent(ctx, []byte(paddleCheckoutPayload), signPaddle(paddleCheckoutPayload, paddleSecret))
		require.NoError(t, err)
		assert.Equal(t, "evt_01pdl", ev.ID)
		assert.Equal(t, billing.EventCheckoutCompleted, ev.Kind)
		assert.Equal(t, time.Date(2026, 6, 1, 12, 1, 0, 0, time.UTC), ev.OccurredAt)
		assert.True(t, ev.Verified)

		require.NotNil(t, ev.Checkout)
		assert.Equal(t, "txn_01", ev.Checkout.PaymentID())
		assert.Equal(t, "sub_01", ev.Checkout.SubscriptionID)
		assert.Equal(t, billing.ModeSubscription, ev.Checkout.Mode)
		assert.Equal(t, billing.Money{Amount: 1200, Currency: "usd"}, ev.Checkout.Amount)
		assert.Equal(t, "acc_1", ev.Checkout.Metadata[billing.MetadataAccountID])
	})

	t.Run("recurring transaction is an invoice payment", func(t *testing.T) {
		t.Parallel()
		payload := `{"event_id":"evt_02","event_type":"transaction.completed","occurred_at":"2026-07-01T12:00:00Z",
			"data":{"id":"txn_02","origin":"subscription_recurring","customer_id":"ctm_01","subscription_id":"sub_01",
			"currency_code":"USD","details":{"totals":{"grand_total":"1200"}}}}`
		p := billing.NewPaddleWebhookVerifier(paddleSecret)

		ev, err := p.ParseEvent(ctx, []byte(payload), signPaddle(payload, paddleSecret))
		require.NoError(t, err)
		assert.Equal(t, billing.EventInvoicePaid, ev.Kind)
		require.NotNil(t, ev.Invoice)
		assert.Equal(t, "txn_02", ev.Invoice.ID)
		assert.Equal(t, "sub_01", ev.Invoice.SubscriptionID)
	})

	t.Run("one-time transaction", func(t *testing.T) {
		t.Parallel()
		payload := `{"event_id":"evt_03","event_type":"transaction.completed","occurred_at":"2026-07-01T12:00:00Z",
			"data":{"id":"txn_03","origin":"web","customer_id":"ctm_01","currency_code":"USD",
			"custom_data":{"account_id":"acc_1","billing_type":"one_time"},"details":{"totals":{"grand_total":"9900"}}}}`
		p := billing.NewPaddleWebhookVerifier(paddleSecret)

		ev, err := p.ParseEvent(ctx, []byte(payload), signPaddle(payload, paddleSecret))
		require.NoError(t, err)
		require.NotNil(t, ev.Checkout)
		assert.Equal(t, billing.ModeOneTime, ev.Checkout.Mode)
		assert.Equal(t, int64(9900), ev.Checkout.Amount.Amount)
	})

	t.Run("payment failed and canceled", func(t *testing.T) {
		t.Parallel()
		p := billing.NewPaddleWebhookVerifier(paddleSecret)

		failed := `{"event_id":"evt_04","event_type":"transaction.payment_failed","occurred_at":"2026-07-01T12:00:00Z",
			"data":{"id":"txn_04","customer_id":"ctm_01","subscription_id":"sub_01","currency_code":"USD"}}`
		ev, err := p.ParseEvent(ctx, []byte(failed), signPaddle(failed, paddleSecret))
		require.NoError(t, err)
		assert.Equal(t, billing.EventInvoicePaymentFailed, ev.Kind)
		assert.Equal(t, "sub_01", ev.Invoice.SubscriptionID)

		canceled := `{"event_id":"evt_05","event_type":"subscription.canceled","occurred_at":"2026-07-02T12:00:00Z",
			"data":{"id":"sub_01","status":"canceled","customer_id":"ctm_01","custom_data":{"workspace_id":"W1"}}}`
		ev, err = p.ParseEvent(ctx, []byte(canceled), signPaddle(canceled, paddleSecret))
		require.NoError(t, err)
		assert.Equal(t, billing.EventSubscriptionDeleted, ev.Kind)
		assert.Equal(t, "sub_01", ev.Subscription.ID)
		assert.Equal(t, "W1", ev.Subscription.Metadata[billing.MetadataWorkspaceID])
	})

	t.Run("invalid signature", func(t *testing.T) {
		t.Parallel()
		p := billing.NewPaddleWebhookVerifier(paddleSecret)

		_, err := p.ParseEvent(ctx, []byte(paddleCheckoutPayload), signPaddle(paddleCheckoutPayload, "other"))
		assert.ErrorIs(t, err, billing.ErrUnauthorized)

		_, err = p.ParseEvent(ctx, []byte(paddleCheckoutPayload), "")
		assert.ErrorIs(t, err, billing.ErrUnauthorized)
	})

	t.Run("unverified mode", func(t *testing.T) {
		t.Parallel()
		p := billing.NewPaddleWebhookVerifier("")
		assert.False(t, p.VerifiesSignatures())

		ev, err := p.ParseEvent(ctx, []byte(paddleCheckoutPayload), "")
		require.NoError(t, err)
		assert.False(t, ev.Verified)
	})
}

func TestNewPaddleProvider(t *testing.T) {
	t.Parallel()

	_, err := billing.NewPaddleProvider(billing.PaddleConfig{})
	assert.ErrorIs(t, err, billing.ErrMissingAPIKey)

	_, err = billing.NewPaddleProvider(billing.PaddleConfig{APIKey: "pdl_key", Environment: "staging"})
	assert.ErrorIs(t, err, billing.ErrInvalidProviderEnvironment)

	p, err := billing.NewPaddleProvider(billing.PaddleConfig{APIKey: "pdl_key", Environment: "sandbox"})
	require.NoError(t, err)
	assert.Equal(t, "paddle", p.Name())
	assert.Equal(t, "Paddle-Signature", p.SignatureHeader())
	assert.False(t, p.VerifiesSignatures())
}
