package validator

import "errors"

var (
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidTarget    = errors.New("validator: target must be a struct or pointer to struct")
)
