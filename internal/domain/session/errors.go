package session

import (
	"errors"

	"github.com/okian/wearsense/internal/adapters/repository"
)

// Sentinel kinds for session errors.
var (
	ErrEmptyToken      = errors.New("session token must not be empty")
	ErrSessionNotFound = repository.ErrSessionNotFound
)
