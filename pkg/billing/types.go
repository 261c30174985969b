package billing

// FeatureKey identifies a gated capability of the planner.
type FeatureKey string

const (
	FeatureGuestsManagement   FeatureKey = "guests_management"
	FeatureBudgetManagement   FeatureKey = "budget_management"
	FeatureTimelineManagement FeatureKey = "timeline_management"
	FeatureVendorManagement   FeatureKey = "vendor_management"
	FeatureSeatingChart       FeatureKey = "seating_chart"
	FeatureRSVPTracking       FeatureKey = "rsvp_tracking"
	FeatureEventWebsite       FeatureKey = "event_website"
	FeaturePhotoGallery       FeatureKey = "photo_gallery"
	FeatureBulkImport         FeatureKey = "bulk_import"
	FeatureCollaborators      FeatureKey = "collaborators"
	FeatureCustomDomain       FeatureKey = "custom_domain"
	FeatureExport             FeatureKey = "export"
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $49.00 USD would be Amount: 4900, Currency: "usd".
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`
	Currency string `json:"currency" yaml:"currency"`
}

// IsZero reports whether no amount is set.
func (m Money) IsZero() bool {
	return m.Amount == 0 && m.Currency == ""
}

// BillingType distinguishes recurring plans from one-time purchases.
type BillingType string

const (
	BillingMonthly BillingType = "monthly"
	BillingOneTime BillingType = "one_time"
)

// Valid reports whether b is a known billing type.
func (b BillingType) Valid() bool {
	return b == BillingMonthly || b == BillingOneTime
}

// CheckoutMode is the kind of checkout session requested by the client.
type CheckoutMode string

const (
	ModeSubscription CheckoutMode = "subscription"
	ModeOneTime      CheckoutMode = "one_time"
)

// Valid reports whether m is a known checkout mode.
func (m CheckoutMode) Valid() bool {
	return m == ModeSubscription || m == ModeOneTime
}

// BillingType returns the billing type a session of this mode produces.
func (m CheckoutMode) BillingType() BillingType {
	if m == ModeOneTime {
		return BillingOneTime
	}
	return BillingMonthly
}

// Status represents the current state of a workspace subscription.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// IsTerminal reports whether the status can never become active again
// for the same external subscription.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// LedgerType classifies a ledger entry.
type LedgerType string

const (
	LedgerSubscription LedgerType = "subscription"
	LedgerOneTime      LedgerType = "one_time"
)

// LedgerTypeFor maps a billing type to the ledger entry type it produces.
func LedgerTypeFor(b BillingType) LedgerType {
	if b == BillingOneTime {
		return LedgerOneTime
	}
	return LedgerSubscription
}

// Checkout metadata keys. The processor echoes them back verbatim on completion,
// so they are the only link between a checkout session and a workspace.
const (
	MetadataAccountID   = "account_id"
	MetadataWorkspaceID = "workspace_id"
	MetadataPlanID      = "plan_id"
	MetadataBillingType = "billing_type"
)

// CheckoutMetadata is the typed form of the session metadata.
type CheckoutMetadata struct {
	AccountID   string
	WorkspaceID string
	PlanID      string
	BillingType BillingType
}

// Map returns the metadata as sent to the processor. Empty values are omitted.
func (m CheckoutMetadata) Map() map[string]string {
	out := make(map[string]string, 4)
	if m.AccountID != "" {
		out[MetadataAccountID] = m.AccountID
	}
	if m.WorkspaceID != "" {
		out[MetadataWorkspaceID] = m.WorkspaceID
	}
	if m.PlanID != "" {
		out[MetadataPlanID] = m.PlanID
	}
	if m.BillingType != "" {
		out[MetadataBillingType] = string(m.BillingType)
	}
	return out
}

// ParseCheckoutMetadata reads the metadata echoed back by the processor.
func ParseCheckoutMetadata(md map[string]string) CheckoutMetadata {
	return CheckoutMetadata{
		AccountID:   md[MetadataAccountID],
		WorkspaceID: md[MetadataWorkspaceID],
		PlanID:      md[MetadataPlanID],
		BillingType: BillingType(md[MetadataBillingType]),
	}
}
