package loadgen

import "errors"

// Sentinel kinds for load runs.
var (
	ErrInvalidConfig = errors.New("invalid load config")
	ErrUnhealthy     = errors.New("service unhealthy")
	ErrStatus        = errors.New("unexpected status")
	ErrMismatch      = errors.New("report mismatch")
)
