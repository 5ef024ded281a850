package mqtt

import "errors"

// Sentinel kinds for subscriber errors.
var (
	ErrConnectTimeout   = errors.New("mqtt connect timed out")
	ErrSubscribeTimeout = errors.New("mqtt subscribe timed out")
	ErrInvalidPayload   = errors.New("mqtt payload is not a sensor reading")
)
