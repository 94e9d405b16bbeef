package core

import (
	"errors"
	"fmt"
)

// Error codes for domain errors.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodePayloadTooLarge = "payload_too_large"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeInternal        = "internal"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	// ErrPayloadTooLarge is a kind of ErrInvalidInput.
	ErrPayloadTooLarge = fmt.Errorf("payload too large: %w", ErrInvalidInput)
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// Invalid returns an ErrInvalidInput carrying msg for the caller.
func Invalid(msg string) error {
	return &CoreError{Code: ErrCodeBadRequest, Message: msg, Err: ErrInvalidInput}
}

// NotFound returns an ErrNotFound carrying msg for the caller.
func NotFound(msg string) error {
	return &CoreError{Code: ErrCodeNotFound, Message: msg, Err: ErrNotFound}
}

// TooLarge returns an ErrPayloadTooLarge carrying msg for the caller.
func TooLarge(msg string) error {
	return &CoreError{Code: ErrCodePayloadTooLarge, Message: msg, Err: ErrPayloadTooLarge}
}

// ErrorFrom converts err into a CoreError safe to show to a client.
// Anything that is not a known domain error becomes a generic internal error.
func ErrorFrom(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return &CoreError{Code: ErrCodePayloadTooLarge, Message: "payload too large", Err: err}
	case errors.Is(err, ErrInvalidInput):
		return &CoreError{Code: ErrCodeBadRequest, Message: "invalid input", Err: err}
	case errors.Is(err, ErrNotFound):
		return &CoreError{Code: ErrCodeNotFound, Message: "not found", Err: err}
	}
	return &CoreError{Code: ErrCodeInternal, Message: "internal server error", Err: err}
}
