package services

import (
	"errors"

	"chalo/internal/models"
)

// ErrorKind classifies engine failures so callers can react without
// string matching.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation_error"
	KindConflict          ErrorKind = "conflict"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindOtpMismatch       ErrorKind = "otp_mismatch"
	KindNotFound          ErrorKind = "not_found"
	KindAuthorization     ErrorKind = "authorization_error"
	KindInternal          ErrorKind = "internal_error"
)

// DomainError is the error type every rejected engine operation returns.
// Ride carries the current, unchanged state when it is known, so callers
// can reconcile without a second fetch.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Ride    *models.Ride
	Err     error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func newDomainError(kind ErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

func (e *DomainError) withRide(ride *models.Ride) *DomainError {
	e.Ride = ride
	return e
}

// KindOf extracts the classification from any error returned by the
// engine; unknown errors map to KindInternal.
func KindOf(err error) ErrorKind {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindInternal
}

// RideFromError returns the ride state attached to a rejected mutation,
// if any.
func RideFromError(err error) *models.Ride {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Ride
	}
	return nil
}
