package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the service layer matches exactly one of
// these with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrOutOfStock         = errors.New("out of stock")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrTransient          = errors.New("transient error")
	ErrPermissionDenied   = errors.New("permission denied")
)

// Error carries a kind, a message safe to show to the buyer and an optional cause.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NotFound(message string) *Error {
	return NewError(ErrNotFound, message)
}

func Validation(format string, args ...any) *Error {
	return NewError(ErrValidation, fmt.Sprintf(format, args...))
}

func Transient(message string, cause error) *Error {
	return WrapError(ErrTransient, message, cause)
}

// UserMessage returns the human readable part of err, falling back to the kind
// name for plain sentinels and to a generic text for anything else.
func UserMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrProductUnavailable, ErrOutOfStock, ErrPaymentFailed, ErrTransient, ErrPermissionDenied} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal server error"
}
