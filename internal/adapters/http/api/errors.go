package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrPanic = errors.New("handler panicked")
)
