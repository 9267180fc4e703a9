package application

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrForbidden is returned when an authenticated principal may not perform the operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrConflict is returned when a booking would overlap an active event.
	ErrConflict = errors.New("application: scheduling conflict")
	// ErrInvalidState is returned when an operation targets an event that can no longer change.
	ErrInvalidState = errors.New("application: invalid state")
	// ErrAlreadyCancelled is returned when cancelling an event twice.
	ErrAlreadyCancelled = errors.New("application: event already cancelled")
	// ErrInvalidClaim is returned for a bad invitation token or one with no matching invite.
	ErrInvalidClaim = errors.New("application: invalid invitation")
	// ErrExpiredClaim is returned when an invitation token is past its expiry.
	ErrExpiredClaim = errors.New("application: invitation expired")
	// ErrAlreadyActivated is returned when an invitation is redeemed for an account with a password.
	ErrAlreadyActivated = errors.New("application: account already activated")
	// ErrAlreadyExists is returned when a unique identifier is already registered.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned for any failed login, without saying which factor failed.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrUnauthenticated is returned when a session token is missing, bad or expired.
	ErrUnauthenticated = errors.New("application: unauthenticated")
)

// ForbiddenError carries the reason an authorization check refused the principal.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e == nil || e.Reason == "" {
		return ErrForbidden.Error()
	}
	return fmt.Sprintf("%s: %s", ErrForbidden.Error(), e.Reason)
}

// Is lets errors.Is match ErrForbidden.
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

func forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}

// ConflictError names the party whose calendar blocks the booking.
type ConflictError struct {
	Party string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConflict.Error(), e.Message())
}

// Message renders the user facing description, e.g. "owner busy".
func (e *ConflictError) Message() string {
	if e == nil || e.Party == "" {
		return "busy"
	}
	return e.Party + " busy"
}

// Is lets errors.Is match ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// InvalidStateError describes the state that blocked the operation.
type InvalidStateError struct {
	State string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidState.Error(), e.State)
}

// Is lets errors.Is match ErrInvalidState.
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// DuplicateError names the identifier that is already registered.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAlreadyExists.Error(), e.Field)
}

// Message renders the user facing description, e.g. "Email already registered".
func (e *DuplicateError) Message() string {
	switch e.Field {
	case "email":
		return "Email already registered"
	case "mobile":
		return "Mobile already registered"
	default:
		return "Already registered"
	}
}

// Is lets errors.Is match ErrAlreadyExists.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func validationFailure(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}
