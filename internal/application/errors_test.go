package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	t.Parallel()

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}
	if empty.HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	var nilErr *ValidationError
	if nilErr.HasErrors() {
		t.Fatalf("expected nil error to have no field errors")
	}

	populated := validationFailure("title", "title is required")
	if !populated.HasErrors() || populated.FieldErrors["title"] != "title is required" {
		t.Fatalf("expected field error to be recorded, got %#v", populated.FieldErrors)
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err      error
		sentinel error
		kind     string
	}{
		{err: forbidden("nope"), sentinel: ErrForbidden, kind: "forbidden"},
		{err: &ConflictError{Party: "owner"}, sentinel: ErrConflict, kind: "conflict"},
		{err: &InvalidStateError{State: "cancelled"}, sentinel: ErrInvalidState, kind: "invalid_state"},
		{err: &DuplicateError{Field: "email"}, sentinel: ErrAlreadyExists, kind: "already_exists"},
		{err: fmt.Errorf("wrapped: %w", ErrAlreadyCancelled), sentinel: ErrAlreadyCancelled, kind: "already_cancelled"},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.sentinel) {
			t.Fatalf("expected %v to match %v", tc.err, tc.sentinel)
		}
		if got := ErrorKind(tc.err); got != tc.kind {
			t.Fatalf("expected kind %q for %v, got %q", tc.kind, tc.err, got)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	if got := (&ConflictError{Party: "Bob"}).Message(); got != "Bob busy" {
		t.Fatalf("unexpected conflict message %q", got)
	}
	if got := (&DuplicateError{Field: "mobile"}).Message(); got != "Mobile already registered" {
		t.Fatalf("unexpected duplicate message %q", got)
	}
	if got := forbidden("Insufficient permissions").Error(); got != "application: forbidden: Insufficient permissions" {
		t.Fatalf("unexpected forbidden message %q", got)
	}
}
