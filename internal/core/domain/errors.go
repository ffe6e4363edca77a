package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a netcode error with a structured error code.
// Codes follow the format GN-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "GN-SETUP-4001")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsFatal reports whether err must end the session: every setup error and a
// detected desync. Prediction stalls and dropped packets are not fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDesync) {
		return true
	}
	var de *DomainError
	if errors.As(err, &de) {
		return len(de.Code) > 9 && de.Code[:9] == "GN-SETUP-"
	}
	return false
}

// ============================================================================
// Setup Errors (SETUP)
// ============================================================================

var (
	// ErrEmptyParticipants indicates a descriptor without participants.
	ErrEmptyParticipants = NewDomainError("GN-SETUP-4000", "participant list is empty")

	// ErrDuplicateHandle indicates two participants claim the same handle.
	ErrDuplicateHandle = NewDomainError("GN-SETUP-4001", "duplicate participant handle")

	// ErrHandleRange indicates handles are not the contiguous range [0, N).
	ErrHandleRange = NewDomainError("GN-SETUP-4002", "participant handles are not contiguous")

	// ErrNoLocalParticipant indicates a descriptor without a Local participant.
	ErrNoLocalParticipant = NewDomainError("GN-SETUP-4003", "no local participant")

	// ErrInvalidAddress indicates a remote address that fails to parse.
	ErrInvalidAddress = NewDomainError("GN-SETUP-4004", "invalid remote address")

	// ErrInvalidSessionConfig indicates an out-of-range session setting.
	ErrInvalidSessionConfig = NewDomainError("GN-SETUP-4005", "invalid session configuration")

	// ErrInvalidRoster indicates a malformed roster or hello message.
	ErrInvalidRoster = NewDomainError("GN-SETUP-4006", "invalid roster")

	// ErrPortInUse indicates the local transport port is already bound.
	ErrPortInUse = NewDomainError("GN-SETUP-4090", "local port already bound")

	// ErrPeerCountMismatch indicates the lobby saw the wrong number of peers.
	ErrPeerCountMismatch = NewDomainError("GN-SETUP-4091", "peer count mismatch")

	// ErrConnectFailed indicates a stream connection to a peer failed.
	ErrConnectFailed = NewDomainError("GN-SETUP-5030", "peer connection failed")

	// ErrDiscoveryFailed indicates the discovery socket could not be opened.
	ErrDiscoveryFailed = NewDomainError("GN-SETUP-5031", "discovery unavailable")
)

// ============================================================================
// Synchronization Errors (SYNC)
// ============================================================================

var (
	// ErrPredictionThreshold indicates advancing would exceed the prediction
	// window. The caller skips the frame and retries on the next tick.
	ErrPredictionThreshold = NewDomainError("GN-SYNC-4290", "prediction threshold reached")

	// ErrInputAlreadyAdded indicates a second local input for the same frame.
	ErrInputAlreadyAdded = NewDomainError("GN-SYNC-4000", "local input already added for frame")

	// ErrMissingLocalInput indicates AdvanceFrame without local input.
	ErrMissingLocalInput = NewDomainError("GN-SYNC-4001", "local input missing for frame")

	// ErrInvalidHandle indicates a handle outside the session or of the wrong type.
	ErrInvalidHandle = NewDomainError("GN-SYNC-4002", "invalid participant handle")

	// ErrSnapshotMissing indicates a rollback target without a retained snapshot.
	ErrSnapshotMissing = NewDomainError("GN-SYNC-5001", "snapshot not retained")

	// ErrDesync indicates confirmed-state checksums differ between peers.
	ErrDesync = NewDomainError("GN-SYNC-5000", "desync detected")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionClosed indicates use of a closed session.
	ErrSessionClosed = NewDomainError("GN-SESS-4100", "session closed")
)
