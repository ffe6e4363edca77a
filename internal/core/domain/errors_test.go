package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("GN-TEST-1000", "test message"),
			expected: "[GN-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("GN-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[GN-TEST-1001] test message: extra info",
		},
		{
			name:     "error with formatted details",
			err:      NewDomainError("GN-TEST-1002", "test message").WithDetailsf("handle %d", 3),
			expected: "[GN-TEST-1002] test message: handle 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("GN-TEST-1000", "message 1")
	err2 := NewDomainError("GN-TEST-1000", "message 2")
	err3 := NewDomainError("GN-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}

	wrapped := fmt.Errorf("build: %w", ErrDuplicateHandle.WithDetails("handle 1"))
	if !errors.Is(wrapped, ErrDuplicateHandle) {
		t.Error("errors.Is should see through fmt wrapping and details")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := NewDomainError("GN-TEST-1000", "wrapper").WithCause(cause)

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if errors.Unwrap(NewDomainError("GN-TEST-1000", "no cause")) != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestDomainError_CopiesOnModify(t *testing.T) {
	original := NewDomainError("GN-TEST-1000", "original message")
	_ = original.WithDetails("additional details")
	_ = original.WithCause(fmt.Errorf("root cause"))

	if original.Details != "" || original.Cause != nil {
		t.Error("WithDetails/WithCause should not modify original error")
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrDesync, "GN-SYNC-5000") {
		t.Error("IsDomainError should return true for matching code")
	}
	if IsDomainError(ErrDesync, "GN-SYNC-9999") {
		t.Error("IsDomainError should return false for non-matching code")
	}
	if IsDomainError(fmt.Errorf("regular error"), "") {
		t.Error("IsDomainError should return false for non-DomainError")
	}
	if !IsDomainError(fmt.Errorf("wrapped: %w", ErrPortInUse), "") {
		t.Error("IsDomainError should work with wrapped errors")
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(fmt.Errorf("x: %w", ErrInvalidAddress)); got != "GN-SETUP-4004" {
		t.Errorf("GetErrorCode() = %q, want %q", got, "GN-SETUP-4004")
	}
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Errorf("GetErrorCode() = %q, want empty", got)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"setup error", ErrPortInUse, true},
		{"wrapped setup error", fmt.Errorf("build: %w", ErrEmptyParticipants), true},
		{"desync", ErrDesync.WithDetails("frame 30"), true},
		{"prediction stall", ErrPredictionThreshold, false},
		{"session closed", ErrSessionClosed, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}
