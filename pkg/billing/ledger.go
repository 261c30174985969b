package billing

import "time"

// Ledger entry statuses.
const (
	PaymentPaid = "paid"
)

// LedgerEntry is an append-only record of a confirmed payment.
// ExternalPaymentID is unique: a payment is recorded at most once no matter
// how often the processor delivers the event.
type LedgerEntry struct {
	ID                string     `json:"id"`
	ExternalPaymentID string     `json:"external_payment_id"`
	WorkspaceID       string     `json:"workspace_id,omitempty"`
	AccountID         string     `json:"account_id"`
	Amount            Money      `json:"amount"`
	Status            string     `json:"status"`
	Type              LedgerType `json:"type"`
	RecordedAt        time.Time  `json:"recorded_at"`
}

// Customer maps an application account to its processor customer.
type Customer struct {
	AccountID          string    `json:"account_id"`
	ExternalCustomerID string    `json:"external_customer_id"`
	Email              string    `json:"email,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
