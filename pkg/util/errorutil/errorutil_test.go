package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsCarryStatus(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{NewValidationError("bad", nil), CodeValidationFailed, http.StatusBadRequest},
		{NewInvalidTransition("bad", nil), CodeInvalidTransition, http.StatusBadRequest},
		{NewNotFound("grievance", nil), CodeNotFound, http.StatusNotFound},
		{NewUnauthorized("who"), CodeUnauthorized, http.StatusUnauthorized},
		{NewForbidden("no"), CodeForbidden, http.StatusForbidden},
		{NewConflict("stale", nil), CodeConflict, http.StatusConflict},
		{NewDirectoryUnavailable("identity", errors.New("dial")), CodeDirectoryUnavailable, http.StatusServiceUnavailable},
		{NewInternalError(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		de := ToDomainError(tc.err)
		if de.Code != tc.code || de.HTTPStatus != tc.status {
			t.Errorf("%v: got %s/%d, want %s/%d", tc.err, de.Code, de.HTTPStatus, tc.code, tc.status)
		}
	}
}

func TestToDomainErrorUnwrapsAndDefaults(t *testing.T) {
	wrapped := fmt.Errorf("assign: %w", NewForbidden("no"))
	if !HasCode(wrapped, CodeForbidden) {
		t.Fatalf("expected wrapped forbidden to be found")
	}

	cause := errors.New("disk full")
	de := ToDomainError(cause)
	if de.Code != CodeInternal || !errors.Is(de, cause) {
		t.Fatalf("unexpected conversion %+v", de)
	}
	if ToDomainError(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	if HasCode(cause, CodeInternal) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestNotFoundMessage(t *testing.T) {
	de := ToDomainError(NewNotFound("officer", nil))
	if de.Message != "officer not found" || de.Details == nil {
		t.Fatalf("unexpected %+v", de)
	}
}
