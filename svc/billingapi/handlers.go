package billingapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/vowbill/handler"
	"github.com/dmitrymomot/vowbill/pkg/billing"
	"github.com/dmitrymomot/vowbill/pkg/entitlement"
	"github.com/dmitrymomot/vowbill/pkg/jwt"
	"github.com/dmitrymomot/vowbill/pkg/logger"
)

type checkoutRequest struct {
	PriceRef    string `json:"price_ref" validate:"required,max=255"`
	Mode        string `json:"mode" validate:"required,oneof=subscription one_time"`
	WorkspaceID string `json:"workspace_id" validate:"omitempty,max=128"`
	SuccessPath string `json:"success_path" validate:"omitempty,relpath"`
	CancelPath  string `json:"cancel_path" validate:"omitempty,relpath"`
}

type workspaceRequest struct {
	WorkspaceID string `path:"workspaceID" json:"workspace_id" validate:"required,max=128"`
}

type paymentsRequest struct {
	WorkspaceID string `query:"workspace_id" json:"workspace_id" validate:"omitempty,max=128"`
	Limit       int    `query:"limit" json:"limit" validate:"omitempty,min=1,max=100"`
}

type webhookAck struct {
	Received bool `json:"received"`
}

type subscriptionResponse struct {
	WorkspaceID  string                `json:"workspace_id"`
	Subscription *billing.Subscription `json:"subscription"`
	Entitlements entitlement.Snapshot  `json:"entitlements"`
}

type paymentsResponse struct {
	Payments []*billing.LedgerEntry `json:"payments"`
}

// account builds the billing caller from the verified token claims.
func account(ctx handler.Context) (billing.Account, bool) {
	claims, ok := jwt.GetClaims(ctx)
	if !ok || claims.Subject == "" {
		return billing.Account{}, false
	}
	return billing.Account{
		ID:            claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, true
}

func (a *API) checkout(ctx handler.Context, req checkoutRequest) handler.Response {
	acc, ok := account(ctx)
	if !ok {
		return handler.Error(billing.ErrUnauthenticated)
	}

	res, err := a.billing.CreateCheckout(ctx, billing.CheckoutRequest{
		Account:     acc,
		PriceRef:    req.PriceRef,
		Mode:        billing.CheckoutMode(req.Mode),
		WorkspaceID: req.WorkspaceID,
		SuccessPath: req.SuccessPath,
		CancelPath:  req.CancelPath,
	})
	a.metrics.observeCheckout(err)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(res)
}

func (a *API) webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := handler.NewContext(w, r)
	provider := a.billing.Provider()

	if !strings.EqualFold(chi.URLParam(r, "provider"), provider.Name()) {
		a.errors(ctx, billing.ErrUnknownProvider)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.webhookLimit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.errors(ctx, handler.NewHTTPError(http.StatusRequestEntityTooLarge, "request_too_large", "").Wrap(err))
			return
		}
		a.errors(ctx, handler.ErrBadRequest.Wrap(err))
		return
	}

	res, err := a.billing.HandleWebhook(r.Context(), payload, r.Header.Get(provider.SignatureHeader()))
	a.metrics.observeWebhook(provider.Name(), res, err, time.Since(start))
	if err != nil {
		a.errors(ctx, err)
		return
	}

	a.logger.DebugContext(r.Context(), "webhook acknowledged",
		logger.Provider(provider.Name()),
		logger.EventID(res.EventID),
		logger.EventType(res.ProviderType),
		logger.Duration(time.Since(start)),
	)
	if err := handler.WriteJSON(w, http.StatusOK, webhookAck{Received: true}); err != nil {
		a.logger.ErrorContext(r.Context(), "failed to write webhook ack", logger.Error(err))
	}
}

// requireWorkspace runs the workspace guard, when configured, before a
// workspace read.
func (a *API) requireWorkspace(next handler.HandlerFunc[workspaceRequest]) handler.HandlerFunc[workspaceRequest] {
	return func(ctx handler.Context, req workspaceRequest) handler.Response {
		acc, ok := account(ctx)
		if !ok {
			return handler.Error(billing.ErrUnauthenticated)
		}
		if a.guard != nil {
			if err := a.guard(ctx, acc.ID, req.WorkspaceID); err != nil {
				return handler.Error(errors.Join(billing.ErrForbidden, err))
			}
		}
		return next(ctx, req)
	}
}

func (a *API) entitlements(ctx handler.Context, req workspaceRequest) handler.Response {
	return handler.JSON(a.resolver.Resolve(ctx, req.WorkspaceID))
}

func (a *API) subscription(ctx handler.Context, req workspaceRequest) handler.Response {
	sub, err := a.billing.Subscription(ctx, req.WorkspaceID)
	if err != nil && !errors.Is(err, billing.ErrSubscriptionNotFound) {
		return handler.Error(err)
	}
	return handler.JSON(subscriptionResponse{
		WorkspaceID:  req.WorkspaceID,
		Subscription: sub,
		Entitlements: a.resolver.Resolve(ctx, req.WorkspaceID),
	})
}

func (a *API) payments(ctx handler.Context, req paymentsRequest) handler.Response {
	acc, ok := account(ctx)
	if !ok {
		return handler.Error(billing.ErrUnauthenticated)
	}
	entries, err := a.billing.Payments(ctx, acc.ID, billing.PaymentFilter{
		WorkspaceID: req.WorkspaceID,
		Limit:       req.Limit,
	})
	if err != nil {
		return handler.Error(err)
	}
	if entries == nil {
		entries = []*billing.LedgerEntry{}
	}
	return handler.JSON(paymentsResponse{Payments: entries})
}
