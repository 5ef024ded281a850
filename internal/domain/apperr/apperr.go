// Package apperr holds the error taxonomy shared by the ingestion pipeline,
// the analytics engine and the HTTP layer.
package apperr

import (
	"errors"
)

// Error kinds. Callers select behaviour with errors.Is.
var (
	ErrMissingRequiredData = errors.New("missing required data")
	ErrInvalidImageFormat  = errors.New("invalid image format")
	ErrInvalidSecret       = errors.New("invalid secret")
	ErrValidation          = errors.New("validation failed")
	ErrService             = errors.New("inference service failed")
	ErrTimeout             = errors.New("inference timed out")
	ErrBackpressure        = errors.New("inference queue full")
	ErrStorage             = errors.New("storage failed")
)

// Error carries an operation name, a kind and a client-facing message.
type Error struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Op
	if s != "" {
		s += ": "
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return s + e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return s + e.Msg
	case e.Err != nil:
		return s + e.Kind.Error() + ": " + e.Err.Error()
	default:
		return s + e.Kind.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind builds an error of the given kind with a client-facing message.
func NewKind(op string, kind error, msg string) error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// WrapKind tags err with kind. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Message returns the outermost client-facing message in err's chain, or the
// error text when none was set.
func Message(err error) string {
	var e *Error
	for cur := err; cur != nil; {
		if !errors.As(cur, &e) {
			break
		}
		if e.Msg != "" {
			return e.Msg
		}
		cur = e.Err
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
