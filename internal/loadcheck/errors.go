package loadcheck

import "errors"

// Sentinel errors returned by Run.
var (
	ErrInvalidConfig = errors.New("invalid load check config")
	ErrUnhealthy     = errors.New("service unhealthy")
	ErrMismatch      = errors.New("rating delta mismatch")
	ErrRequests      = errors.New("requests failed")
)
