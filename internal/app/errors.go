package service

import "errors"

// Client-facing messages. The HTTP layer returns them verbatim in {error}.
const (
	MsgMissingRequiredData = "Missing required data"
	MsgInvalidImage        = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	MsgInvalidRequestData  = "Invalid request data."
	MsgInvalidSecret       = "Invalid secret code"
	MsgInvalidComfort      = "Invalid secret code or comfort values"
	msgInvalidNumber       = "%s: A valid number is required."
)

// Sentinel kinds for service lifecycle errors.
var (
	ErrNotStarted = errors.New("service not started")
)
