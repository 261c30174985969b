package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/vowbill/pkg/billing"
	"github.com/dmitrymomot/vowbill/pkg/pg"
)

// Store persists billing state in PostgreSQL. It implements
// billing.SubscriptionStore, billing.LedgerStore and billing.CustomerStore.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var (
	_ billing.SubscriptionStore = (*Store)(nil)
	_ billing.LedgerStore       = (*Store)(nil)
	_ billing.CustomerStore     = (*Store)(nil)
)

// New creates a Store. Panics on a nil pool.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pool is required")
	}
	return &Store{pool: pool, now: time.Now}
}

const subscriptionColumns = `workspace_id, account_id, plan_id, external_subscription_id, external_customer_id,
	billing_type, status, paid_amount, paid_currency, activated_at, cancelled_at,
	status_changed_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*billing.Subscription, error) {
	var s billing.Subscription
	err := row.Scan(
		&s.WorkspaceID, &s.AccountID, &s.PlanID, &s.ExternalSubscriptionID, &s.ExternalCustomerID,
		&s.BillingType, &s.Status, &s.PaidAmount.Amount, &s.PaidAmount.Currency, &s.ActivatedAt, &s.CancelledAt,
		&s.StatusChangedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Get implements billing.SubscriptionStore.
func (s *Store) Get(ctx context.Context, workspaceID string) (*billing.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM billing_subscriptions WHERE workspace_id = $1`, workspaceID))
	if pg.IsNotFoundError(err) {
		return nil, billing.ErrSubscriptionNotFound
	}
	return sub, err
}

// ListByAccount implements billing.SubscriptionStore.
func (s *Store) ListByAccount(ctx context.Context, accountID string) ([]*billing.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM billing_subscriptions WHERE account_id = $1 ORDER BY created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*billing.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Upsert implements billing.SubscriptionStore. The workspace and the external
// subscription are locked for the duration of the transaction so a concurrent
// Mark cannot interleave with the merge.
func (s *Store) Upsert(ctx context.Context, sub billing.Subscription) (*billing.Subscription, bool, error) {
	var (
		merged  billing.Subscription
		changed bool
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lock(ctx, tx, "workspace:"+sub.WorkspaceID); err != nil {
			return err
		}
		var mark *billing.StatusMark
		if sub.ExternalSubscriptionID != "" {
			if err := lock(ctx, tx, "subscription:"+sub.ExternalSubscriptionID); err != nil {
				return err
			}
			m, err := getMark(ctx, tx, sub.ExternalSubscriptionID)
			if err != nil {
				return err
			}
			mark = m
		}

		current, err := scanSubscription(tx.QueryRow(ctx,
			`SELECT `+subscriptionColumns+` FROM billing_subscriptions WHERE workspace_id = $1 FOR UPDATE`, sub.WorkspaceID))
		if err != nil && !pg.IsNotFoundError(err) {
			return err
		}

		now := s.now().UTC()
		if sub.CreatedAt.IsZero() {
			sub.CreatedAt = now
		}
		merged, changed = billing.Merge(current, sub, mark)
		if !changed {
			return nil
		}
		merged.UpdatedAt = now
		return saveSubscription(ctx, tx, merged)
	})
	if err != nil {
		return nil, false, err
	}
	return &merged, changed, nil
}

// Mark implements billing.SubscriptionStore.
func (s *Store) Mark(ctx context.Context, m billing.StatusMark) (*billing.Subscription, bool, error) {
	var (
		result   *billing.Subscription
		changed  bool
		notFound bool
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lock(ctx, tx, "subscription:"+m.ExternalSubscriptionID); err != nil {
			return err
		}

		prev, err := getMark(ctx, tx, m.ExternalSubscriptionID)
		if err != nil {
			return err
		}
		if m.Supersedes(prev) {
			if _, err := tx.Exec(ctx, `
				INSERT INTO billing_status_marks (external_subscription_id, status, marked_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (external_subscription_id) DO UPDATE
				SET status = EXCLUDED.status, marked_at = EXCLUDED.marked_at`,
				m.ExternalSubscriptionID, m.Status, m.At); err != nil {
				return err
			}
		}

		sub, err := scanSubscription(tx.QueryRow(ctx,
			`SELECT `+subscriptionColumns+` FROM billing_subscriptions
			WHERE external_subscription_id = $1 ORDER BY created_at LIMIT 1 FOR UPDATE`, m.ExternalSubscriptionID))
		if pg.IsNotFoundError(err) {
			// Commit the mark; a later checkout completion will pick it up.
			notFound = true
			return nil
		}
		if err != nil {
			return err
		}

		result = sub
		if changed = m.Apply(sub); !changed {
			return nil
		}
		sub.UpdatedAt = s.now().UTC()
		return saveSubscription(ctx, tx, *sub)
	})
	if err != nil {
		return nil, false, err
	}
	if notFound {
		return nil, false, billing.ErrSubscriptionNotFound
	}
	return result, changed, nil
}

// GetPayment implements billing.LedgerStore.
func (s *Store) GetPayment(ctx context.Context, externalPaymentID string) (*billing.LedgerEntry, error) {
	var e billing.LedgerEntry
	err := s.pool.QueryRow(ctx, `
		SELECT id, external_payment_id, workspace_id, account_id, amount, currency, status, type, recorded_at
		FROM billing_ledger WHERE external_payment_id = $1`, externalPaymentID).Scan(
		&e.ID, &e.ExternalPaymentID, &e.WorkspaceID, &e.AccountID, &e.Amount.Amount, &e.Amount.Currency,
		&e.Status, &e.Type, &e.RecordedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, billing.ErrLedgerEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Append implements billing.LedgerStore. The unique external payment id makes
// redelivered payments a no-op.
func (s *Store) Append(ctx context.Context, entry billing.LedgerEntry) (bool, error) {
	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}
	recordedAt := entry.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.now().UTC()
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO billing_ledger
			(id, external_payment_id, workspace_id, account_id, amount, currency, status, type, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (external_payment_id) DO NOTHING`,
		id, entry.ExternalPaymentID, entry.WorkspaceID, entry.AccountID, entry.Amount.Amount,
		entry.Amount.Currency, entry.Status, entry.Type, recordedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListPayments implements billing.LedgerStore.
func (s *Store) ListPayments(ctx context.Context, accountID string) ([]*billing.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, external_payment_id, workspace_id, account_id, amount, currency, status, type, recorded_at
		FROM billing_ledger WHERE account_id = $1 ORDER BY recorded_at DESC, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*billing.LedgerEntry
	for rows.Next() {
		var e billing.LedgerEntry
		if err := rows.Scan(&e.ID, &e.ExternalPaymentID, &e.WorkspaceID, &e.AccountID, &e.Amount.Amount,
			&e.Amount.Currency, &e.Status, &e.Type, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// GetByAccount implements billing.CustomerStore.
func (s *Store) GetByAccount(ctx context.Context, accountID string) (*billing.Customer, error) {
	return s.getCustomer(ctx, `account_id = $1`, accountID)
}

// GetByExternalID implements billing.CustomerStore.
func (s *Store) GetByExternalID(ctx context.Context, externalCustomerID string) (*billing.Customer, error) {
	return s.getCustomer(ctx, `external_customer_id = $1`, externalCustomerID)
}

func (s *Store) getCustomer(ctx context.Context, where, arg string) (*billing.Customer, error) {
	var c billing.Customer
	err := s.pool.QueryRow(ctx,
		`SELECT account_id, external_customer_id, email, created_at FROM billing_customers WHERE `+where, arg).
		Scan(&c.AccountID, &c.ExternalCustomerID, &c.Email, &c.CreatedAt)
	if pg.IsNotFoundError(err) {
		return nil, billing.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Save implements billing.CustomerStore.
func (s *Store) Save(ctx context.Context, c billing.Customer) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO billing_customers (account_id, external_customer_id, email, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE
		SET external_customer_id = EXCLUDED.external_customer_id, email = EXCLUDED.email`,
		c.AccountID, c.ExternalCustomerID, c.Email, createdAt)
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, fn)
}

func lock(ctx context.Context, tx pgx.Tx, key string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

func getMark(ctx context.Context, tx pgx.Tx, externalID string) (*billing.StatusMark, error) {
	m := billing.StatusMark{ExternalSubscriptionID: externalID}
	err := tx.QueryRow(ctx,
		`SELECT status, marked_at FROM billing_status_marks WHERE external_subscription_id = $1`, externalID).
		Scan(&m.Status, &m.At)
	if pg.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func saveSubscription(ctx context.Context, tx pgx.Tx, s billing.Subscription) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO billing_subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (workspace_id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			plan_id = EXCLUDED.plan_id,
			external_subscription_id = EXCLUDED.external_subscription_id,
			external_customer_id = EXCLUDED.external_customer_id,
			billing_type = EXCLUDED.billing_type,
			status = EXCLUDED.status,
			paid_amount = EXCLUDED.paid_amount,
			paid_currency = EXCLUDED.paid_currency,
			activated_at = EXCLUDED.activated_at,
			cancelled_at = EXCLUDED.cancelled_at,
			status_changed_at = EXCLUDED.status_changed_at,
			updated_at = EXCLUDED.updated_at`,
		s.WorkspaceID, s.AccountID, s.PlanID, s.ExternalSubscriptionID, s.ExternalCustomerID,
		s.BillingType, s.Status, s.PaidAmount.Amount, s.PaidAmount.Currency, s.ActivatedAt, s.CancelledAt,
		s.StatusChangedAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNoRowsAffected
	}
	return nil
}
