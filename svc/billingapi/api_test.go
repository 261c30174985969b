package billingapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/vowbill/handler"
	"github.com/dmitrymomot/vowbill/pkg/billing"
	"github.com/dmitrymomot/vowbill/pkg/entitlement"
	"github.com/dmitrymomot/vowbill/pkg/httpserver"
	"github.com/dmitrymomot/vowbill/pkg/jwt"
	"github.com/dmitrymomot/vowbill/pkg/ratelimiter"
	"github.com/dmitrymomot/vowbill/svc/billingapi"
)

const (
	tokenSecret   = "test-signing-key"
	webhookSecret = "whsec_api_test"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string             { return "mock" }
func (m *mockProvider) SignatureHeader() string  { return "X-Mock-Signature" }
func (m *mockProvider) VerifiesSignatures() bool { return true }

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
	return args.Get(0).(*billing.Event), args.Error(1)
}

type testEnv struct {
	server   *httptest.Server
	store    *billing.MemoryStore
	tokens   *jwt.Service
	registry *prometheus.Registry
}

func newEnv(t *testing.T, provider billing.Provider, opts ...billingapi.Option) *testEnv {
	t.Helper()

	catalog, err := billingapi.LoadCatalog(context.Background(), billingapi.Config{})
	require.NoError(t, err)

	tokens, err := jwt.NewFromString(tokenSecret)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := billingapi.NewMetrics(reg, "test")

	store := billing.NewMemoryStore()
	snapshots := entitlement.NewMemoryCache(100)
	snapshots.OnEvict(metrics.ObserveCacheEviction)
	resolver := entitlement.NewResolver(store, catalog,
		entitlement.WithCache(snapshots),
		entitlement.WithCacheObserver(metrics.ObserveCache),
	)
	svc := billing.NewService(provider, catalog, store, store, store,
		billing.WithBaseURL("https://app.example.com"),
		billing.WithInvalidator(resolver),
	)

	opts = append([]billingapi.Option{billingapi.WithMetrics(metrics, reg)}, opts...)
	api := billingapi.New(svc, resolver, tokens, opts...)

	srv := httptest.NewServer(api.Handle())
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, store: store, tokens: tokens, registry: reg}
}

func (e *testEnv) token(t *testing.T, subject string, verified bool) string {
	t.Helper()
	tok, err := e.tokens.Generate(jwt.Claims{
		Email:         "couple@example.com",
		EmailVerified: verified,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token, body string, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeError(t *testing.T, data []byte) handler.ErrorBody {
	t.Helper()
	var body handler.ErrorBody
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestAPI_Checkout(t *testing.T) {
	t.Parallel()

	t.Run("creates a session for a verified account", func(t *testing.T) {
		t.Parallel()
		p := &mockProvider{}
		p.On("FindCustomer", mock.Anything, "couple@example.com").Return("cus_1", nil).Once()
		p.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(sp billing.SessionParams) bool {
			return sp.CustomerID == "cus_1" && sp.Metadata[billing.MetadataWorkspaceID] == "W1"
		})).Return(&billing.Session{ID: "cs_1", URL: "https://pay.example.com/cs_1"}, nil).Once()
		env := newEnv(t, p)

		resp, data := env.do(t, http.MethodPost, "/billing/checkout", env.token(t, "acc_1", true),
			`{"price_ref":"price_pro_monthly","mode":"subscription","workspace_id":"W1"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

		var res billing.CheckoutResult
		require.NoError(t, json.Unmarshal(data, &res))
		assert.Equal(t, "https://pay.example.com/cs_1", res.RedirectURL)
		assert.Equal(t, "pro", res.PlanID)
		p.AssertExpectations(t)
	})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		env := newEnv(t, &mockProvider{})

		resp, data := env.do(t, http.MethodPost, "/billing/checkout", "", `{"price_ref":"price_pro_monthly","mode":"subscription"}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "unauthenticated", decodeError(t, data).Code)
	})

	t.Run("unverified email", func(t *testing.T) {
		t.Parallel()
		p := &mockProvider{}
		env := newEnv(t, p)

		resp, _ := env.do(t, http.MethodPost, "/billing/checkout", env.token(t, "acc_1", false),
			`{"price_ref":"price_pro_monthly","mode":"subscription"}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		p.AssertNotCalled(t, "FindCustomer", mock.Anything, mock.Anything)
	})

	t.Run("validation errors carry field details", func(t *testing.T) {
		t.Parallel()
		env := newEnv(t, &mockProvider{})

		resp, data := env.do(t, http.MethodPost, "/billing/checkout", env.token(t, "acc_1", true),
			`{"price_ref":"price_pro_monthly","mode":"weekly","success_path":"https://evil.example.com"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeError(t, data)
		assert.Contains(t, body.Details, "mode")
		assert.Contains(t, body.Details, "success_path")
	})

	t.Run("unknown price is a client error", func(t *testing.T) {
		t.Parallel()
		p := &mockProvider{}
		env := newEnv(t, p)

		resp, data := env.do(t, http.MethodPost, "/billing/checkout", env.token(t, "acc_1", true),
			`{"price_ref":"price_gold","mode":"subscription"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, billing.ErrUnknownPriceRef.Error(), decodeError(t, data).Error)
		p.AssertNotCalled(t, "FindCustomer", mock.Anything, mock.Anything)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		t.Parallel()
		env := newEnv(t, &mockProvider{})

		resp, _ := env.do(t, http.MethodPost, "/billing/checkout", env.token(t, "acc_1", true),
			`{"price_ref":"price_pro_monthly","mode":"subscription","amount":1}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("checkouts are rate limited per account", func(t *testing.T) {
		t.Parallel()
		p := &mockProvider{}
		p.On("FindCustomer", mock.Anything, mock.Anything).Return("cus_1", nil).Once()
		p.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(&billing.Session{ID: "cs_1", URL: "https://pay.example.com/cs_1"}, nil).Once()

		store := ratelimiter.NewMemoryStore(ratelimiter.WithSweepInterval(0))
		limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})
		require.NoError(t, err)
		env := newEnv(t, p, billingapi.WithCheckoutLimit(limiter))

		body := `{"price_ref":"price_pro_monthly","mode":"subscription"}`
		resp, _ := env.do(t, http.MethodPost, "/billing/checkout", env.token(t, "acc_1", true), body)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, data := env.do(t, http.MethodPost, "/billing/checkout", env.token(t, "acc_1", true), body)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "rate_limited", decodeError(t, data).Code)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))

		resp, _ = env.do(t, http.MethodPost, "/billing/checkout", env.token(t, "acc_2", false), body)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "other accounts have their own bucket")
		p.AssertExpectations(t)
	})

	t.Run("processor failure is a bad gateway", func(t *testing.T) {
		t.Parallel()
		p := &mockProvider{}
		p.On("FindCustomer", mock.Anything, mock.Anything).Return("", errors.New("connection reset")).Once()
		env := newEnv(t, p)

		resp, data := env.do(t, http.MethodPost, "/billing/checkout", env.token(t, "acc_1", true),
			`{"price_ref":"price_pro_lifetime","mode":"one_time"}`)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "upstream_failure", decodeError(t, data).Code)
	})
}

const checkoutPayload = `{
  "id": "evt_api_1",
  "object": "event",
  "type": "checkout.session.completed",
  "created": 1780315200,
  "data": {
    "object": {
      "id": "cs_api_1",
      "object": "checkout.session",
      "mode": "subscription",
      "customer": "cus_1",
      "subscription": "sub_api_1",
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

func sign(payload, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	}).Header
}

func TestAPI_Webhook(t *testing.T) {
	t.Parallel()

	t.Run("checkout completion unlocks the plan", func(t *testing.T) {
		t.Parallel()
		env := newEnv(t, billing.NewStripeWebhookVerifier(webhookSecret))
		tok := env.token(t, "acc_1", true)

		resp, data := env.do(t, http.MethodGet, "/billing/workspaces/W1/entitlements", tok, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var before entitlement.Snapshot
		require.NoError(t, json.Unmarshal(data, &before))
		assert.Equal(t, "basic", before.PlanID)
		assert.True(t, before.Default)

		for range 2 {
			resp, data = env.do(t, http.MethodPost, "/billing/webhooks/stripe", "", checkoutPayload,
				"Stripe-Signature", sign(checkoutPayload, webhookSecret))
			require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
			assert.JSONEq(t, `{"received":true}`, string(data))
		}

		resp, data = env.do(t, http.MethodGet, "/billing/workspaces/W1/entitlements", tok, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var after entitlement.Snapshot
		require.NoError(t, json.Unmarshal(data, &after))
		assert.Equal(t, "pro", after.PlanID)
		assert.Contains(t, after.Features, billing.FeatureSeatingChart)

		payments, err := env.store.ListPayments(context.Background(), "acc_1")
		require.NoError(t, err)
		assert.Len(t, payments, 1, "redelivery is recorded once")

		_, data = env.do(t, http.MethodGet, "/metrics", "", "")
		assert.Contains(t, string(data), "test_entitlement_cache_evictions_total 1")
	})

	t.Run("invalid signature is rejected without writes", func(t *testing.T) {
		t.Parallel()
		env := newEnv(t, billing.NewStripeWebhookVerifier(webhookSecret))

		resp, data := env.do(t, http.MethodPost, "/billing/webhooks/stripe", "", checkoutPayload,
			"Stripe-Signature", sign(checkoutPayload, "whsec_other"))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid_signature", decodeError(t, data).Code)

		_, err := env.store.Get(context.Background(), "W1")
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
	})

	t.Run("other provider path is not found", func(t *testing.T) {
		t.Parallel()
		env := newEnv(t, billing.NewStripeWebhookVerifier(webhookSecret))

		resp, _ := env.do(t, http.MethodPost, "/billing/webhooks/paddle", "", checkoutPayload)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("oversized body", func(t *testing.T) {
		t.Parallel()
		env := newEnv(t, billing.NewStripeWebhookVerifier(webhookSecret), billingapi.WithWebhookLimit(64))

		resp, _ := env.do(t, http.MethodPost, "/billing/webhooks/stripe", "", checkoutPayload,
			"Stripe-Signature", sign(checkoutPayload, webhookSecret))
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("unparseable event is a client error", func(t *testing.T) {
		t.Parallel()
		p := &mockProvider{}
		p.On("ParseEvent", mock.Anything, mock.Anything, "sig").Return(nil, errors.New("disk full")).Once()
		env := newEnv(t, p)

		resp, _ := env.do(t, http.MethodPost, "/billing/webhooks/mock", "", `{}`, "X-Mock-Signature", "sig")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unparseable events are malformed, not retried")
	})
}

func TestAPI_WorkspaceReads(t *testing.T) {
	t.Parallel()

	guard := func(_ context.Context, accountID, workspaceID string) error {
		if workspaceID == "W-other" {
			return errors.New("not a collaborator")
		}
		return nil
	}

	env := newEnv(t, billing.NewStripeWebhookVerifier(webhookSecret), billingapi.WithWorkspaceGuard(guard))
	tok := env.token(t, "acc_1", true)

	t.Run("subscription of a workspace without one", func(t *testing.T) {
		t.Parallel()
		resp, data := env.do(t, http.MethodGet, "/billing/workspaces/W-empty/subscription", tok, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Subscription *billing.Subscription `json:"subscription"`
			Entitlements entitlement.Snapshot  `json:"entitlements"`
		}
		require.NoError(t, json.Unmarshal(data, &body))
		assert.Nil(t, body.Subscription)
		assert.Equal(t, "basic", body.Entitlements.PlanID)
	})

	t.Run("guard denies foreign workspaces", func(t *testing.T) {
		t.Parallel()
		resp, data := env.do(t, http.MethodGet, "/billing/workspaces/W-other/entitlements", tok, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "forbidden", decodeError(t, data).Code)
	})

	t.Run("reads require a token", func(t *testing.T) {
		t.Parallel()
		resp, _ := env.do(t, http.MethodGet, "/billing/workspaces/W1/entitlements", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("payment history is empty, not null", func(t *testing.T) {
		t.Parallel()
		resp, data := env.do(t, http.MethodGet, "/billing/payments", env.token(t, "acc_nobody", true), "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"payments":[]}`, string(data))
	})

	t.Run("payment history filters by workspace and limit", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		for i, ws := range []string{"W1", "W2", "W1"} {
			_, err := env.store.Append(ctx, billing.LedgerEntry{
				ExternalPaymentID: "pi_hist_" + string(rune('a'+i)),
				WorkspaceID:       ws,
				AccountID:         "acc_hist",
				Amount:            billing.Money{Amount: 1200, Currency: "usd"},
				Status:            billing.PaymentPaid,
				Type:              billing.LedgerOneTime,
				RecordedAt:        time.Date(2026, 6, 1, 12, i, 0, 0, time.UTC),
			})
			require.NoError(t, err)
		}
		histTok := env.token(t, "acc_hist", true)

		resp, data := env.do(t, http.MethodGet, "/billing/payments?workspace_id=W1&limit=1", histTok, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Payments []billing.LedgerEntry `json:"payments"`
		}
		require.NoError(t, json.Unmarshal(data, &body))
		require.Len(t, body.Payments, 1)
		assert.Equal(t, "pi_hist_c", body.Payments[0].ExternalPaymentID)

		resp, data = env.do(t, http.MethodGet, "/billing/payments?workspace_id=W2", histTok, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(data, &body))
		require.Len(t, body.Payments, 1)
		assert.Equal(t, "pi_hist_b", body.Payments[0].ExternalPaymentID)

		resp, data = env.do(t, http.MethodGet, "/billing/payments?limit=500", histTok, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, decodeError(t, data).Details, "limit")

		resp, _ = env.do(t, http.MethodGet, "/billing/payments?limit=many", histTok, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPI_Operational(t *testing.T) {
	t.Parallel()

	t.Run("healthz reports failing probes", func(t *testing.T) {
		t.Parallel()
		env := newEnv(t, &mockProvider{}, billingapi.WithHealthChecks(httpserver.Check{
			Name:  "postgres",
			Probe: func(context.Context) error { return errors.New("down") },
		}))

		resp, data := env.do(t, http.MethodGet, "/healthz", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.JSONEq(t, `{"status":"unavailable","checks":{"postgres":"unavailable"}}`, string(data))
	})

	t.Run("metrics count cache lookups", func(t *testing.T) {
		t.Parallel()
		env := newEnv(t, &mockProvider{})
		tok := env.token(t, "acc_1", true)

		env.do(t, http.MethodGet, "/billing/workspaces/W1/entitlements", tok, "")
		env.do(t, http.MethodGet, "/billing/workspaces/W1/entitlements", tok, "")

		resp, data := env.do(t, http.MethodGet, "/metrics", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(data), `test_entitlement_cache_lookups_total{result="hit"} 1`)
		assert.Contains(t, string(data), `test_entitlement_cache_lookups_total{result="miss"} 1`)
	})
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	_, err := billingapi.NewProvider(billingapi.Config{Provider: "braintree"})
	assert.ErrorIs(t, err, billing.ErrUnknownProvider)

	_, err = billingapi.NewProvider(billingapi.Config{Provider: "stripe"})
	assert.ErrorIs(t, err, billing.ErrMissingAPIKey)

	p, err := billingapi.NewProvider(billingapi.Config{
		Provider: "Paddle",
		Paddle:   billing.PaddleConfig{APIKey: "pdl_key", Environment: "sandbox"},
	})
	require.NoError(t, err)
	assert.Equal(t, "paddle", p.Name())
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
	}{
		{billing.ErrUnauthenticated, http.StatusUnauthorized},
		{errors.Join(billing.ErrUnauthorized, billing.ErrWebhookVerificationFailed), http.StatusUnauthorized},
		{errors.Join(billing.ErrForbidden, errors.New("x")), http.StatusForbidden},
		{errors.Join(billing.ErrInvalidRequest, billing.ErrInvalidMode), http.StatusBadRequest},
		{errors.Join(billing.ErrUpstreamFailure, billing.ErrNoCheckoutURL), http.StatusBadGateway},
		{errors.Join(billing.ErrUpstreamFailure, errors.New("upsert subscription: connection refused")), http.StatusBadGateway},
		{errors.Join(billing.ErrInvalidRequest, billing.ErrInvalidFilter), http.StatusBadRequest},
		{billing.ErrSubscriptionNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		he := billingapi.MapError(tt.err)
		require.NotNil(t, he, tt.err.Error())
		assert.Equal(t, tt.status, he.Status, tt.err.Error())
	}

	assert.Nil(t, billingapi.MapError(errors.New("boom")))
}
