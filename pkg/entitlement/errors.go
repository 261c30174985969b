package entitlement

import "errors"

var (
	ErrFeatureNotAvailable = errors.New("entitlement: feature not available on current plan")
	ErrMissingWorkspace    = errors.New("entitlement: workspace id is required")
	ErrCacheMiss           = errors.New("entitlement: cache miss")
)
