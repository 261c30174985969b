package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/vowbill/pkg/binder"
	"github.com/dmitrymomot/vowbill/pkg/logger"
	"github.com/dmitrymomot/vowbill/pkg/requestid"
	"github.com/dmitrymomot/vowbill/pkg/validator"
)

// ErrorMapper translates domain errors into HTTP errors. It returns nil for
// errors it does not know.
type ErrorMapper func(err error) *HTTPError

// Classify resolves err to an HTTPError using mappers first, then the
// package defaults for HTTPError, binding and validation errors. Anything
// else is ErrInternal.
func Classify(err error, mappers ...ErrorMapper) (*HTTPError, map[string][]string) {
	if ve, ok := validator.Extract(err); ok {
		return ErrBadRequest.Wrap(err), ve.Map()
	}
	for _, m := range mappers {
		if he := m(err); he != nil {
			return he, nil
		}
	}

	var he *HTTPError
	switch {
	case errors.As(err, &he):
		return he, nil
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return NewHTTPError(http.StatusUnsupportedMediaType, "unsupported_media_type", "").Wrap(err), nil
	case errors.Is(err, binder.ErrRequestTooLarge):
		return NewHTTPError(http.StatusRequestEntityTooLarge, "request_too_large", "").Wrap(err), nil
	case errors.Is(err, binder.ErrFailedToParseJSON),
		errors.Is(err, binder.ErrFailedToParseQuery),
		errors.Is(err, binder.ErrFailedToParsePath):
		return ErrBadRequest.Wrap(err), nil
	default:
		return ErrInternal.Wrap(err), nil
	}
}

// NewErrorHandler logs the failure with the request id and writes an
// ErrorBody. Client errors are logged at warn level, server errors at error.
func NewErrorHandler(log *slog.Logger, mappers ...ErrorMapper) ErrorHandler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return func(ctx Context, err error) {
		he, details := Classify(err, mappers...)
		r := ctx.Request()

		level := slog.LevelWarn
		if he.Status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.LogAttrs(r.Context(), level, "request failed",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status", he.Status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("http"),
		)

		body := ErrorBody{Error: he.Message, Code: he.Code, Details: details}
		if writeErr := WriteJSON(ctx.ResponseWriter(), he.Status, body); writeErr != nil {
			log.ErrorContext(r.Context(), "failed to write error response", logger.Error(writeErr))
		}
	}
}
