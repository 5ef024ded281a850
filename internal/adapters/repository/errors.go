package repository

import "errors"

// Sentinel kinds for record store errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrSessionRequired = errors.New("record has no session id")
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownDriver   = errors.New("unknown storage driver")
	ErrSecretRequired  = errors.New("session secret must not be empty")
)
