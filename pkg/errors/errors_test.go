package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := New("FAILED", "failed", 500).WithInternal(internal)

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("invalid payload")
	if err.Code != ErrBadRequest.Code {
		t.Fatalf("expected %s, got %s", ErrBadRequest.Code, err.Code)
	}
	if err.Message != "invalid payload" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != ErrBadRequest.StatusCode {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
}

func TestDeriveKeepsKind(t *testing.T) {
	err := ErrInvariantViolation.Derive("TEAM_OWNER_CANNOT_LEAVE", "owner cannot leave")

	if !stdErrors.Is(err, ErrInvariantViolation) {
		t.Fatal("expected derived error to match its kind")
	}
	if stdErrors.Is(err, ErrAuthorizationDenied) {
		t.Fatal("derived error must not match an unrelated kind")
	}
	if err.StatusCode != ErrInvariantViolation.StatusCode {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}

	nested := err.Derive("NESTED", "nested")
	if nested.Kind != ErrInvariantViolation {
		t.Fatal("expected nested derive to keep the root kind")
	}
}

func TestIsThroughWrapping(t *testing.T) {
	base := ErrPreconditionFailed.Derive("TEAM_CHANGED", "team changed")
	wrapped := fmt.Errorf("transfer: %w", base.WithInternal(stdErrors.New("rows=0")))

	if !stdErrors.Is(wrapped, ErrPreconditionFailed) {
		t.Fatal("expected wrapped error to match precondition kind")
	}
	if !stdErrors.Is(wrapped, base) {
		t.Fatal("expected wrapped error to match the derived error by code")
	}
}

func TestWithMessageCopies(t *testing.T) {
	msg := ErrNotFound.WithMessage("team not found")
	if msg == ErrNotFound || ErrNotFound.Message == "team not found" {
		t.Fatal("expected WithMessage to return a copy")
	}
	if !stdErrors.Is(msg, ErrNotFound) {
		t.Fatal("expected copy to keep the code")
	}
}
