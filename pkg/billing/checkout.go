package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dmitrymomot/vowbill/pkg/logger"
	"github.com/dmitrymomot/vowbill/pkg/validator"
)

const (
	maxPriceRefLen    = 255
	maxWorkspaceIDLen = 128
)

// Account is the authenticated caller of a checkout.
type Account struct {
	ID            string
	Email         string
	EmailVerified bool
}

// CheckoutRequest is a request to start a hosted checkout.
type CheckoutRequest struct {
	Account     Account
	PriceRef    string
	Mode        CheckoutMode
	WorkspaceID string
	SuccessPath string
	CancelPath  string
}

// validate checks the caller supplied fields. Every failed field is reported
// as a validator.ValidationErrors entry and through its billing sentinel.
func (r CheckoutRequest) validate() error {
	ve, ok := validator.Extract(validator.Apply(
		validator.Required("price_ref", r.PriceRef),
		validator.MaxLen("price_ref", r.PriceRef, maxPriceRefLen),
		validator.OneOf("mode", r.Mode, ModeSubscription, ModeOneTime),
		validator.MaxLen("workspace_id", r.WorkspaceID, maxWorkspaceIDLen),
		validator.RelativePath("success_path", r.SuccessPath),
		validator.RelativePath("cancel_path", r.CancelPath),
	))
	if !ok {
		return nil
	}

	errs := []error{ErrInvalidRequest}
	for _, fe := range ve {
		switch fe.Field {
		case "price_ref":
			if fe.Tag == "required" {
				errs = append(errs, ErrMissingPriceRef)
			} else {
				errs = append(errs, ErrUnknownPriceRef)
			}
		case "mode":
			errs = append(errs, ErrInvalidMode)
		case "workspace_id":
			errs = append(errs, ErrInvalidWorkspace)
		case "success_path", "cancel_path":
			errs = append(errs, ErrInvalidReturnPath)
		}
	}
	return errors.Join(append(errs, ve)...)
}

// CheckoutResult is where the client must be redirected to pay.
type CheckoutResult struct {
	RedirectURL string    `json:"redirect_url"`
	SessionID   string    `json:"session_id"`
	PlanID      string    `json:"plan_id"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

// CreateCheckout validates the request, resolves or creates the processor
// customer and creates a checkout session whose metadata carries the account,
// workspace, plan and billing type back to the webhook processor.
//
// Validation failures return ErrInvalidRequest before any external call.
// Processor and persistence failures return ErrUpstreamFailure.
func (s *Service) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	acc := req.Account
	if acc.ID == "" || acc.Email == "" || !acc.EmailVerified {
		return nil, ErrUnauthenticated
	}

	if err := req.validate(); err != nil {
		return nil, err
	}

	plan, billingType, err := s.resolvePrice(req.PriceRef, req.Mode)
	if err != nil {
		return nil, errors.Join(ErrInvalidRequest, err)
	}

	successURL, err := s.returnURL(req.SuccessPath, s.successPath)
	if err != nil {
		return nil, errors.Join(ErrInvalidRequest, err)
	}
	cancelURL, err := s.returnURL(req.CancelPath, s.cancelPath)
	if err != nil {
		return nil, errors.Join(ErrInvalidRequest, err)
	}

	if req.WorkspaceID != "" && s.guard != nil {
		if err := s.guard(ctx, acc.ID, req.WorkspaceID); err != nil {
			return nil, errors.Join(ErrForbidden, err)
		}
	}

	log := s.logger.With(
		logger.AccountID(acc.ID),
		logger.WorkspaceID(req.WorkspaceID),
		logger.PlanID(plan.ID),
	)

	customerID, err := s.resolveCustomer(ctx, acc)
	if err != nil {
		log.ErrorContext(ctx, "failed to resolve billing customer", logger.Error(err))
		return nil, errors.Join(ErrUpstreamFailure, err)
	}

	metadata := CheckoutMetadata{
		AccountID:   acc.ID,
		WorkspaceID: req.WorkspaceID,
		PlanID:      plan.ID,
		BillingType: billingType,
	}

	callCtx, cancel := s.withUpstreamTimeout(ctx)
	defer cancel()

	sess, err := s.provider.CreateCheckoutSession(callCtx, SessionParams{
		CustomerID: customerID,
		PriceRef:   req.PriceRef,
		Mode:       req.Mode,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata:   metadata.Map(),
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to create checkout session", logger.Error(err))
		return nil, errors.Join(ErrUpstreamFailure, err)
	}
	if sess.URL == "" {
		return nil, errors.Join(ErrUpstreamFailure, ErrNoCheckoutURL)
	}

	log.InfoContext(ctx, "checkout session created",
		slog.String("session_id", sess.ID),
		logger.CustomerID(customerID),
		slog.String("billing_type", string(billingType)),
	)

	return &CheckoutResult{
		RedirectURL: sess.URL,
		SessionID:   sess.ID,
		PlanID:      plan.ID,
		ExpiresAt:   sess.ExpiresAt,
	}, nil
}

func (s *Service) resolvePrice(ref string, mode CheckoutMode) (Plan, BillingType, error) {
	plan, billingType, ok := s.catalog.ByPriceRef(ref)
	if !ok {
		return Plan{}, "", fmt.Errorf("%w: %s", ErrUnknownPriceRef, ref)
	}
	if billingType != mode.BillingType() {
		return Plan{}, "", fmt.Errorf("%w: %s is a %s price", ErrPriceModeMismatch, ref, billingType)
	}
	return plan, billingType, nil
}

// returnURL resolves a validated path, or the configured fallback, against
// the base URL. Only same-origin references are accepted.
func (s *Service) returnURL(path, fallback string) (string, error) {
	if path == "" {
		path = fallback
	}
	ref, err := url.Parse(path)
	if err != nil || ref.IsAbs() || ref.Host != "" {
		return "", ErrInvalidReturnPath
	}
	if s.baseURL == nil {
		return ref.String(), nil
	}
	return s.baseURL.ResolveReference(ref).String(), nil
}

// resolveCustomer returns the processor customer for the account: the stored
// mapping first, then a lookup by email, then a new customer. A found or
// created customer is stored before it is used.
func (s *Service) resolveCustomer(ctx context.Context, acc Account) (string, error) {
	c, err := s.customers.GetByAccount(ctx, acc.ID)
	switch {
	case err == nil:
		return c.ExternalCustomerID, nil
	case !errors.Is(err, ErrCustomerNotFound):
		return "", fmt.Errorf("load customer mapping: %w", err)
	}

	callCtx, cancel := s.withUpstreamTimeout(ctx)
	defer cancel()

	customerID, err := s.provider.FindCustomer(callCtx, acc.Email)
	if errors.Is(err, ErrCustomerNotFound) {
		customerID, err = s.provider.CreateCustomer(callCtx, CustomerParams{AccountID: acc.ID, Email: acc.Email})
		if err != nil {
			return "", fmt.Errorf("create customer: %w", err)
		}
	} else if err != nil {
		return "", fmt.Errorf("find customer: %w", err)
	}

	if err := s.customers.Save(ctx, Customer{
		AccountID:          acc.ID,
		ExternalCustomerID: customerID,
		Email:              acc.Email,
		CreatedAt:          s.now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("save customer mapping: %w", err)
	}

	return customerID, nil
}
