package billing

import "errors"

var (
	ErrUnauthenticated       = errors.New("billing: caller is not authenticated")
	ErrUnauthorized          = errors.New("billing: webhook signature rejected")
	ErrForbidden             = errors.New("billing: workspace access denied")
	ErrInvalidRequest        = errors.New("billing: invalid request")
	ErrUpstreamFailure       = errors.New("billing: upstream failure")
	ErrUnresolvedCorrelation = errors.New("billing: event cannot be correlated")

	ErrMissingPriceRef   = errors.New("price reference is required")
	ErrUnknownPriceRef   = errors.New("unknown price reference")
	ErrInvalidMode       = errors.New("checkout mode must be subscription or one_time")
	ErrPriceModeMismatch = errors.New("price does not match checkout mode")
	ErrInvalidReturnPath = errors.New("return path must be a relative path")
	ErrInvalidWorkspace  = errors.New("workspace id is too long")
	ErrInvalidFilter     = errors.New("invalid payment history filter")
	ErrInvalidPayload    = errors.New("malformed webhook payload")

	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrLedgerEntryNotFound  = errors.New("ledger entry not found")
	ErrCustomerNotFound     = errors.New("customer not found")

	ErrPlanNotFound             = errors.New("plan not found")
	ErrInvalidPlanConfiguration = errors.New("invalid plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load plans")

	ErrMissingAPIKey              = errors.New("billing provider API key is required")
	ErrInvalidProviderEnvironment = errors.New("invalid billing provider environment")
	ErrWebhookVerificationFailed  = errors.New("webhook signature verification failed")
	ErrNoCheckoutURL              = errors.New("no checkout URL returned from provider")
	ErrUnknownProvider            = errors.New("unknown billing provider")
)
