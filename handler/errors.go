package handler

import (
	"errors"
	"net/http"
)

var ErrNilResponse = errors.New("handler returned nil response")

// HTTPError carries the status code and machine readable code of a failed
// request. Message is shown to the client; Err, when set, is only logged.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

// NewHTTPError creates an HTTPError. An empty message defaults to the status text.
func NewHTTPError(status int, code, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &HTTPError{Status: status, Code: code, Message: message}
}

// Wrap returns a copy of e carrying err.
func (e *HTTPError) Wrap(err error) *HTTPError {
	cp := *e
	cp.Err = err
	return &cp
}

var (
	ErrBadRequest   = NewHTTPError(http.StatusBadRequest, "invalid_request", "")
	ErrUnauthorized = NewHTTPError(http.StatusUnauthorized, "unauthenticated", "")
	ErrForbidden    = NewHTTPError(http.StatusForbidden, "forbidden", "")
	ErrNotFound     = NewHTTPError(http.StatusNotFound, "not_found", "")
	ErrInternal     = NewHTTPError(http.StatusInternalServerError, "internal_error", "An error occurred processing your request")
)
