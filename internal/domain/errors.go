package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidImage    = errors.New("invalid image")
	ErrSafetyRejected  = errors.New("safety rejected")
	ErrProviderFailure = errors.New("provider failure")
	ErrNoOutput        = errors.New("no generated output")
	ErrStorageFailure  = errors.New("storage failure")
)

// Kind classifies terminal pipeline failures for callers.
type Kind string

const (
	KindInvalidImage           Kind = "InvalidImage"
	KindUnauthorized           Kind = "Unauthorized"
	KindProviderSafetyRejected Kind = "ProviderSafetyRejected"
	KindProviderError          Kind = "ProviderError"
	KindStorageError           Kind = "StorageError"
)

// SafetyRejectionMessage is shown to clinic staff when the provider refuses the photo.
const SafetyRejectionMessage = "The AI rejected this image for safety reasons. Please try a photo with more clothing (e.g., a t-shirt) or a tighter face crop."

// Error carries a Kind and a human-readable message alongside the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a typed error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf maps any error onto the pipeline taxonomy. Unknown errors are
// treated as provider failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) && typed.Kind != "" {
		return typed.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidImage):
		return KindInvalidImage
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrSafetyRejected):
		return KindProviderSafetyRejected
	case errors.Is(err, ErrStorageFailure):
		return KindStorageError
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindProviderError
	}
	return KindProviderError
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) && typed.Message != "" {
		return typed.Message
	}
	if KindOf(err) == KindProviderSafetyRejected {
		return SafetyRejectionMessage
	}
	return err.Error()
}
