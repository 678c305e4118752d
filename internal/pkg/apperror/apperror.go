package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds. Match with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrSignature        = errors.New("signature error")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrAlreadyGenerated = fmt.Errorf("%w: variants already generated", ErrConflict)
	ErrGeneration       = errors.New("generation error")
	ErrDelivery         = errors.New("delivery error")
	ErrNotification     = errors.New("notification error")
)

// Error carries a kind, a client-safe message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func newError(kind error, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

func Validation(format string, args ...interface{}) *Error {
	return newError(ErrValidation, nil, format, args...)
}

func Signature(cause error) *Error {
	return newError(ErrSignature, cause, "invalid webhook signature")
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(ErrNotFound, nil, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(ErrConflict, nil, format, args...)
}

func AlreadyGenerated() *Error {
	return newError(ErrAlreadyGenerated, nil, "variants already generated or generating")
}

func Generation(cause error) *Error {
	return newError(ErrGeneration, cause, "variant generation failed")
}

func Delivery(cause error) *Error {
	return newError(ErrDelivery, cause, "email delivery failed")
}

func Notification(cause error) *Error {
	return newError(ErrNotification, cause, "notification delivery failed")
}

// StatusCode maps an error chain to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrSignature):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrGeneration), errors.Is(err, ErrDelivery):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message safe to show to API clients.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
