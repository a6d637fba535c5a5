package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrUnauthenticated = fmt.Errorf("not authenticated")
	ErrLoginPending    = fmt.Errorf("authorization pending")
	ErrLoginFailed     = fmt.Errorf("authorization failed")
	ErrTimeout         = fmt.Errorf("operation timed out")

	// Remote catalog errors
	ErrRemoteUnavailable = fmt.Errorf("remote service unavailable")
	ErrRemoteRejected    = fmt.Errorf("remote service rejected request")
	ErrNotFound          = fmt.Errorf("not found")

	// Local library errors
	ErrLocalWrite = fmt.Errorf("local write failed")
	ErrNotLinked  = fmt.Errorf("playlist is not linked to TIDAL")
	ErrForbidden  = fmt.Errorf("playlist belongs to another user")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// Classify returns the failure class name for err, or "" when err is nil or unclassified.
//
// Order matters: an unauthenticated refresh failure may also wrap a transport error.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "Unauthenticated"
	case errors.Is(err, ErrRemoteUnavailable):
		return "RemoteUnavailable"
	case errors.Is(err, ErrRemoteRejected):
		return "RemoteRejected"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrLocalWrite):
		return "LocalWriteFailure"
	default:
		return ""
	}
}

// Retryable reports whether the whole operation can be retried later without caller intervention.
func Retryable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}
