// Package handler turns typed request handlers into http.HandlerFunc values.
//
// A HandlerFunc receives a Context and a request struct populated by binders,
// and returns a Response. Errors from binding, validation, the handler itself
// (through Error) or rendering all reach one ErrorHandler, which writes an
// ErrorBody and logs the failure:
//
//	type paymentsRequest struct {
//		Limit int `query:"limit"`
//	}
//
//	h := func(ctx handler.Context, req paymentsRequest) handler.Response {
//		entries, err := svc.Payments(ctx, accountID(ctx), billing.PaymentFilter{Limit: req.Limit})
//		if err != nil {
//			return handler.Error(err)
//		}
//		return handler.JSON(entries)
//	}
//
//	r.Get("/billing/payments", handler.Wrap(h,
//		handler.WithBinders[paymentsRequest](binder.Query()),
//		handler.WithErrorHandler[paymentsRequest](errHandler),
//	))
//
// Domain packages plug their error taxonomy in with ErrorMapper.
package handler
