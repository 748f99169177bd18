package remote

import (
	"errors"
	"fmt"
)

// Common errors returned by remote adapter operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, remote.ErrAuth) {
//	    // Prompt the user to re-authenticate
//	}
var (
	// ErrAuth is returned when the credential is invalid, expired, or
	// lacks the required scope.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound is returned when the remote entity is missing, for
	// example a task that was already deleted remotely.
	ErrNotFound = errors.New("remote entity not found")

	// ErrValidation is returned when the remote service rejects the
	// payload as malformed.
	ErrValidation = errors.New("remote rejected payload")

	// ErrNetwork is returned on transport failure: the request never got
	// a usable response.
	ErrNetwork = errors.New("network failure")

	// ErrUnknown is returned for any remote failure that does not map to
	// a more specific category.
	ErrUnknown = errors.New("unknown remote error")
)

// CallError wraps a failed adapter call with the operation name and, when
// available, the HTTP status and the service's own error message.
type CallError struct {
	Op     string // adapter operation, e.g. "ListTasks"
	Status int    // HTTP status, 0 when the request never completed
	Detail string // remote error message, if any
	Err    error  // one of the sentinel errors above
}

func (e *CallError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v (status %d: %s)", e.Op, e.Err, e.Status, e.Detail)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %v (status %d)", e.Op, e.Err, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsAuth returns true if the error indicates the credential must be
// refreshed before any further remote call can succeed.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsRetryable returns true if the same call is likely to succeed on retry
// without user intervention. Auth and validation failures are not
// retryable; transport failures and unclassified server errors are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}
	if errors.Is(err, ErrUnknown) {
		return true
	}
	return false
}

// classifyStatus maps an HTTP status code to a sentinel error.
func classifyStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 404 || status == 410:
		return ErrNotFound
	case status == 400 || status == 422:
		return ErrValidation
	default:
		return ErrUnknown
	}
}
