package billing_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vowbill/pkg/billing"
	"github.com/dmitrymomot/vowbill/pkg/validator"
)

type brokenLedger struct {
	*billing.MemoryStore
}

func (brokenLedger) ListPayments(ctx context.Context, accountID string) ([]*billing.LedgerEntry, error) {
	return nil, errors.New("connection reset")
}

func brokenLedgerService(t *testing.T) *billing.Service {
	t.Helper()
	store := billing.NewMemoryStore()
	return billing.NewService(&mockProvider{verified: true}, testCatalog(t), store, brokenLedger{store}, store,
		billing.WithBaseURL("https://app.example.com"))
}

func TestService_Payments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	seed := func(t *testing.T) *fixture {
		t.Helper()
		f := newFixture(t)
		for i, ws := range []string{"W1", "W2", "W1", "W1"} {
			_, err := f.store.Append(ctx, billing.LedgerEntry{
				ExternalPaymentID: "pi_" + string(rune('a'+i)),
				WorkspaceID:       ws,
				AccountID:         "acc_1",
				Amount:            billing.Money{Amount: 1200, Currency: "usd"},
				Status:            billing.PaymentPaid,
				Type:              billing.LedgerOneTime,
				RecordedAt:        at(i),
			})
			require.NoError(t, err)
		}
		return f
	}

	ids := func(entries []*billing.LedgerEntry) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.ExternalPaymentID)
		}
		return out
	}

	t.Run("zero filter returns everything newest first", func(t *testing.T) {
		t.Parallel()
		f := seed(t)
		got, err := f.svc.Payments(ctx, "acc_1", billing.PaymentFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"pi_d", "pi_c", "pi_b", "pi_a"}, ids(got))
	})

	t.Run("workspace and limit narrow the history", func(t *testing.T) {
		t.Parallel()
		f := seed(t)
		got, err := f.svc.Payments(ctx, "acc_1", billing.PaymentFilter{WorkspaceID: "W1", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"pi_d", "pi_c"}, ids(got))

		got, err = f.svc.Payments(ctx, "acc_1", billing.PaymentFilter{WorkspaceID: "W9"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("out of range filter is rejected before reading", func(t *testing.T) {
		t.Parallel()
		svc := brokenLedgerService(t)

		for _, filter := range []billing.PaymentFilter{
			{Limit: billing.MaxPaymentsLimit + 1},
			{Limit: -1},
			{WorkspaceID: strings.Repeat("w", 129)},
		} {
			_, err := svc.Payments(ctx, "acc_1", filter)
			assert.ErrorIs(t, err, billing.ErrInvalidRequest)
			assert.ErrorIs(t, err, billing.ErrInvalidFilter)
			assert.NotErrorIs(t, err, billing.ErrUpstreamFailure)
			_, ok := validator.Extract(err)
			assert.True(t, ok)
		}
	})

	t.Run("store failure is an upstream failure", func(t *testing.T) {
		t.Parallel()
		svc := brokenLedgerService(t)
		_, err := svc.Payments(ctx, "acc_1", billing.PaymentFilter{})
		assert.ErrorIs(t, err, billing.ErrUpstreamFailure)
	})
}
