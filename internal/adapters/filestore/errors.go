package filestore

import "errors"

// Sentinel kinds for file store errors.
var (
	ErrUnknownDirectory = errors.New("directory is not watched by this store")
	ErrInvalidPath      = errors.New("path escapes the media root")
)
