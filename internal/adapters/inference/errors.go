package inference

import "errors"

// Sentinel kinds for model client errors.
var (
	ErrStatus   = errors.New("model service returned an error status")
	ErrResponse = errors.New("model service response is malformed")
	ErrNoURL    = errors.New("model service url is empty")
)
