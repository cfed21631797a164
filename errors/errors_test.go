package errors

import (
	"fmt"
	"testing"
)

func TestHpcodeError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeSessionNotFound, "session not found")
	if err.Code != ErrCodeSessionNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeSessionNotFound, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeSchedulerFailed, "sacct failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeSchedulerFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeSessionNotFound) {
		t.Error("Is should return false for non-matching code")
	}

	// Test Is through a plain wrapper
	rewrapped := fmt.Errorf("outer: %w", wrapped)
	if !Is(rewrapped, ErrCodeSchedulerFailed) {
		t.Error("Is should unwrap plain wrapped errors")
	}

	// Test WithDetail
	detailed := err.WithDetail("ref", "vscode_server").WithDetail("jobId", "12345")
	if detailed.Details["ref"] != "vscode_server" {
		t.Error("WithDetail should add details")
	}
}

func TestErrorConstructors(t *testing.T) {
	// Test SessionNotFound
	err := SessionNotFound("session-42")
	if err.Code != ErrCodeSessionNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeSessionNotFound, err.Code)
	}
	if err.Details["ref"] != "session-42" {
		t.Error("SessionNotFound should include ref detail")
	}

	// Test PermissionDenied
	err = PermissionDenied("session-42", "otheruser")
	if err.Code != ErrCodePermissionDenied {
		t.Errorf("expected code %s, got %s", ErrCodePermissionDenied, err.Code)
	}
	if err.Details["owner"] != "otheruser" {
		t.Error("PermissionDenied should include owner detail")
	}

	// Test NoPortAvailable
	err = NoPortAvailable(44000, 44099)
	if err.Code != ErrCodeNoPortAvailable {
		t.Errorf("expected code %s, got %s", ErrCodeNoPortAvailable, err.Code)
	}
	if err.Details["min"] != 44000 || err.Details["max"] != 44099 {
		t.Error("NoPortAvailable should include range details")
	}

	// Test SubmissionFailed
	err = SubmissionFailed("QOSMaxSubmitJobPerUserLimit", fmt.Errorf("exit status 1"))
	if err.Code != ErrCodeSubmissionFailed {
		t.Errorf("expected code %s, got %s", ErrCodeSubmissionFailed, err.Code)
	}
	if err.Details["reason"] != "QOSMaxSubmitJobPerUserLimit" {
		t.Error("SubmissionFailed should include the scheduler reason")
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(nil) != "" {
		t.Error("GetCode(nil) should be empty")
	}
	if GetCode(fmt.Errorf("plain")) != "" {
		t.Error("GetCode on plain error should be empty")
	}
	err := PartitionUnknown("gpu2")
	if GetCode(err) != ErrCodePartitionUnknown {
		t.Errorf("expected %s, got %s", ErrCodePartitionUnknown, GetCode(err))
	}
}
