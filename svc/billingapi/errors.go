package billingapi

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/vowbill/handler"
	"github.com/dmitrymomot/vowbill/pkg/billing"
)

var (
	errInvalidSignature   = handler.NewHTTPError(http.StatusUnauthorized, "invalid_signature", "Webhook signature rejected")
	errUpstream           = handler.NewHTTPError(http.StatusBadGateway, "upstream_failure", "Payment processor is unavailable, try again")
	errNoSubscription     = handler.NewHTTPError(http.StatusNotFound, "subscription_not_found", "Subscription not found")
	errUnknownWebhookPath = handler.NewHTTPError(http.StatusNotFound, "unknown_provider", "Unknown billing provider")
	errRateLimited        = handler.NewHTTPError(http.StatusTooManyRequests, "rate_limited", "Too many checkout attempts, try again later")
)

// requestFaults are reported to the client as the message of a 400.
var requestFaults = []error{
	billing.ErrMissingPriceRef,
	billing.ErrUnknownPriceRef,
	billing.ErrInvalidMode,
	billing.ErrPriceModeMismatch,
	billing.ErrInvalidReturnPath,
	billing.ErrInvalidWorkspace,
	billing.ErrInvalidFilter,
	billing.ErrInvalidPayload,
}

// MapError translates billing errors into HTTP errors.
func MapError(err error) *handler.HTTPError {
	switch {
	case errors.Is(err, billing.ErrUnauthenticated):
		return handler.ErrUnauthorized.Wrap(err)
	case errors.Is(err, billing.ErrUnauthorized):
		return errInvalidSignature.Wrap(err)
	case errors.Is(err, billing.ErrForbidden):
		return handler.ErrForbidden.Wrap(err)
	case errors.Is(err, billing.ErrInvalidRequest):
		he := handler.ErrBadRequest.Wrap(err)
		for _, fault := range requestFaults {
			if errors.Is(err, fault) {
				he.Message = fault.Error()
				break
			}
		}
		return he
	case errors.Is(err, billing.ErrUpstreamFailure), errors.Is(err, billing.ErrNoCheckoutURL):
		return errUpstream.Wrap(err)
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		return errNoSubscription.Wrap(err)
	case errors.Is(err, billing.ErrUnknownProvider):
		return errUnknownWebhookPath.Wrap(err)
	}
	return nil
}
